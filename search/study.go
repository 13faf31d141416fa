// Package search runs hyperparameter studies: an objective is evaluated on
// trials whose parameters are drawn by a sampler, and every trial is recorded
// in a storage backend.
package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Direction int

const (
	Maximize Direction = iota
	Minimize
)

func (d Direction) String() string {
	if d == Minimize {
		return "minimize"
	}
	return "maximize"
}

// UserAttrFailReason is the user attribute holding why a trial failed
const UserAttrFailReason = "fail_reason"

var ErrNoCompletedTrials = errors.New("no completed trials")

// Objective evaluates one trial. Returning an error marks the trial failed.
type Objective func(ctx context.Context, trial *Trial) (float64, error)

// TrialCallback is called after every finished trial
type TrialCallback func(study *Study, trial FrozenTrial)

type StudyConfig struct {
	// Name defaults to a random name
	Name      string
	Direction Direction
	Sampler   Sampler
	Storage   Storage
	Logger    log.Logger
}

type Study struct {
	Name      string
	Direction Direction

	sampler Sampler
	storage Storage
	logger  log.Logger
}

// CreateStudy registers the study in its storage, an existing study of the
// same name and direction is resumed
func CreateStudy(ctx context.Context, config StudyConfig) (*Study, error) {
	s := &Study{
		Name:      config.Name,
		Direction: config.Direction,
		sampler:   config.Sampler,
		storage:   config.Storage,
		logger:    config.Logger,
	}
	if s.Name == "" {
		s.Name = "study-" + uuid.NewString()
	}
	if s.sampler == nil {
		s.sampler = NewRandomSampler(uint64(time.Now().UnixNano()))
	}
	if s.storage == nil {
		s.storage = NewInMemoryStorage()
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	if err := s.storage.CreateStudy(ctx, s.Name, s.Direction); err != nil {
		return nil, err
	}
	level.Info(s.logger).Log("msg", "study created", "study", s.Name, "direction", s.Direction.String())
	return s, nil
}

// Optimize runs nTrials trials one after the other. A failing objective only
// fails its trial, cancellation of ctx ends the study with the context error.
func (s *Study) Optimize(ctx context.Context, objective Objective, nTrials int, callbacks ...TrialCallback) error {
	for i := 0; i < nTrials; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frozen, err := s.runTrial(ctx, objective)
		if err != nil {
			return err
		}
		for _, cb := range callbacks {
			cb(s, frozen)
		}
	}
	return nil
}

func (s *Study) runTrial(ctx context.Context, objective Objective) (FrozenTrial, error) {
	number, err := s.storage.NextTrialNumber(ctx, s.Name)
	if err != nil {
		return FrozenTrial{}, err
	}
	trial := &Trial{
		ctx:    ctx,
		study:  s,
		frozen: newFrozenTrial(number),
	}
	if err := s.storage.SaveTrial(ctx, s.Name, trial.frozen); err != nil {
		return FrozenTrial{}, err
	}

	value, objErr := s.evaluate(ctx, objective, trial)
	trial.frozen.Complete = time.Now()
	switch {
	case objErr != nil:
		trial.frozen.State = TrialFail
		trial.frozen.UserAttrs[UserAttrFailReason] = objErr.Error()
	case math.IsNaN(value) || math.IsInf(value, 0):
		trial.frozen.State = TrialFail
		trial.frozen.UserAttrs[UserAttrFailReason] = fmt.Sprintf("objective returned %v", value)
	default:
		trial.frozen.State = TrialComplete
		trial.frozen.Value = value
	}
	// context.Background so that the record of an interrupted trial is kept
	if err := s.storage.SaveTrial(context.Background(), s.Name, trial.frozen); err != nil {
		return FrozenTrial{}, err
	}

	if trial.frozen.State == TrialFail {
		level.Warn(s.logger).Log("msg", "trial failed", "trial", number, "reason", trial.frozen.UserAttrs[UserAttrFailReason])
		if ctxErr := ctx.Err(); ctxErr != nil {
			return trial.frozen, ctxErr
		}
		return trial.frozen, nil
	}
	level.Info(s.logger).Log("msg", "trial finished", "trial", number, "value", value, "params", fmt.Sprint(trial.frozen.Params))
	if best, err := s.BestTrial(ctx); err == nil {
		level.Info(s.logger).Log("msg", "best trial so far", "trial", best.Number, "value", best.Value)
	}
	return trial.frozen, nil
}

func (s *Study) evaluate(ctx context.Context, objective Objective, trial *Trial) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("objective panicked: %v", r)
		}
	}()
	return objective(ctx, trial)
}

// Trials recorded so far, ordered by number
func (s *Study) Trials(ctx context.Context) ([]FrozenTrial, error) {
	return s.storage.Trials(ctx, s.Name)
}

func (s *Study) better(a, b float64) bool {
	if s.Direction == Minimize {
		return a < b
	}
	return a > b
}

// BestTrial is the completed trial with the best value, ties go to the earliest
func (s *Study) BestTrial(ctx context.Context) (FrozenTrial, error) {
	trials, err := s.Trials(ctx)
	if err != nil {
		return FrozenTrial{}, err
	}
	found := false
	var best FrozenTrial
	for _, t := range trials {
		if t.State != TrialComplete {
			continue
		}
		if !found || s.better(t.Value, best.Value) {
			best = t
			found = true
		}
	}
	if !found {
		return FrozenTrial{}, ErrNoCompletedTrials
	}
	return best, nil
}

func (s *Study) BestParams(ctx context.Context) (map[string]float64, error) {
	best, err := s.BestTrial(ctx)
	if err != nil {
		return nil, err
	}
	return best.Params, nil
}

func (s *Study) BestValue(ctx context.Context) (float64, error) {
	best, err := s.BestTrial(ctx)
	if err != nil {
		return 0, err
	}
	return best.Value, nil
}
