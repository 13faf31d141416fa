package search

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

type TrialState string

const (
	TrialRunning  TrialState = "running"
	TrialComplete TrialState = "complete"
	TrialFail     TrialState = "fail"
)

// FrozenTrial is the stored record of a trial
type FrozenTrial struct {
	Number        int                     `json:"number"`
	State         TrialState              `json:"state"`
	Value         float64                 `json:"value"`
	Params        map[string]float64      `json:"params"`
	Distributions map[string]Distribution `json:"distributions"`
	UserAttrs     map[string]string       `json:"user_attrs"`
	Start         time.Time               `json:"datetime_start"`
	Complete      time.Time               `json:"datetime_complete"`
}

func newFrozenTrial(number int) FrozenTrial {
	return FrozenTrial{
		Number:        number,
		State:         TrialRunning,
		Params:        make(map[string]float64),
		Distributions: make(map[string]Distribution),
		UserAttrs:     make(map[string]string),
		Start:         time.Now(),
	}
}

// Copy returns a trial that shares no maps with t
func (t FrozenTrial) Copy() FrozenTrial {
	c := t
	c.Params = make(map[string]float64, len(t.Params))
	for k, v := range t.Params {
		c.Params[k] = v
	}
	c.Distributions = make(map[string]Distribution, len(t.Distributions))
	for k, v := range t.Distributions {
		c.Distributions[k] = v
	}
	c.UserAttrs = make(map[string]string, len(t.UserAttrs))
	for k, v := range t.UserAttrs {
		c.UserAttrs[k] = v
	}
	return c
}

// ParamNames sorted
func (t FrozenTrial) ParamNames() []string {
	names := make([]string, 0, len(t.Params))
	for n := range t.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Trial is the handle given to the objective. Every suggestion is written
// through to the study storage.
type Trial struct {
	ctx    context.Context
	study  *Study
	frozen FrozenTrial
}

func (t *Trial) Number() int {
	return t.frozen.Number
}

// Params suggested so far
func (t *Trial) Params() map[string]float64 {
	return t.frozen.Copy().Params
}

func (t *Trial) suggest(name string, dist Distribution) (float64, error) {
	if err := dist.Validate(); err != nil {
		return 0, errors.Wrapf(err, "parameter %s", name)
	}
	if v, ok := t.frozen.Params[name]; ok {
		if !t.frozen.Distributions[name].equal(dist) {
			return 0, errors.Errorf("parameter %s suggested again with a different distribution", name)
		}
		return v, nil
	}
	v := t.study.sampler.Sample(t.frozen.Copy(), name, dist)
	if !dist.Contains(v) {
		return 0, errors.Errorf("sampler returned %v for parameter %s outside its distribution", v, name)
	}
	t.frozen.Params[name] = v
	t.frozen.Distributions[name] = dist
	if err := t.study.storage.SaveTrial(t.ctx, t.study.Name, t.frozen); err != nil {
		return 0, errors.Wrap(err, "saving trial")
	}
	return v, nil
}

// SuggestInt draws an integer in [low, high]
func (t *Trial) SuggestInt(name string, low, high int) (int, error) {
	v, err := t.suggest(name, Distribution{Kind: IntDistribution, Low: float64(low), High: float64(high)})
	return int(v), err
}

// SuggestUniform draws a float in [low, high]
func (t *Trial) SuggestUniform(name string, low, high float64) (float64, error) {
	return t.suggest(name, Distribution{Kind: UniformDistribution, Low: low, High: high})
}

// SuggestLogUniform draws a float in [low, high] uniformly in log space
func (t *Trial) SuggestLogUniform(name string, low, high float64) (float64, error) {
	return t.suggest(name, Distribution{Kind: LogUniformDistribution, Low: low, High: high})
}

func (t *Trial) SuggestCategorical(name string, choices []float64) (float64, error) {
	return t.suggest(name, Distribution{Kind: CategoricalDistribution, Choices: choices})
}

// SetUserAttr attaches a string attribute to the trial record
func (t *Trial) SetUserAttr(key, value string) error {
	t.frozen.UserAttrs[key] = value
	return t.study.storage.SaveTrial(t.ctx, t.study.Name, t.frozen)
}
