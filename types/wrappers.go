package types

import (
	"math"

	"github.com/pkg/errors"
)

// InfoTruncated is set in the step info when the time limit ended the episode
const InfoTruncated = "TimeLimit.truncated"

// TimeLimit ends episodes after a fixed number of steps
type TimeLimit struct {
	env          Environment
	maxSteps     int
	elapsedSteps int
	started      bool
}

var _ Wrapper = &TimeLimit{}

func NewTimeLimit(env Environment, maxSteps int) *TimeLimit {
	return &TimeLimit{
		env:      env,
		maxSteps: maxSteps,
	}
}

func (t *TimeLimit) Reset() (Observation, error) {
	t.elapsedSteps = 0
	t.started = true
	return t.env.Reset()
}

func (t *TimeLimit) Step(a Action) (*Transition, error) {
	if !t.started {
		return nil, errors.New("cannot call Step before Reset")
	}
	tr, err := t.env.Step(a)
	if err != nil {
		return nil, err
	}
	t.elapsedSteps++
	if t.elapsedSteps >= t.maxSteps {
		if tr.Info == nil {
			tr.Info = make(Info)
		}
		tr.Info[InfoTruncated] = !tr.Done
		tr.Done = true
	}
	return tr, nil
}

func (t *TimeLimit) MaxSteps() int                { return t.maxSteps }
func (t *TimeLimit) ObservationSpace() *DictSpace { return t.env.ObservationSpace() }
func (t *TimeLimit) ActionSpace() *Box            { return t.env.ActionSpace() }
func (t *TimeLimit) Close() error                 { return t.env.Close() }
func (t *TimeLimit) Unwrap() Environment          { return t.env }

// RunningMeanStd tracks mean and variance of a stream of batches
type RunningMeanStd struct {
	Mean  float64
	Var   float64
	Count float64
}

func NewRunningMeanStd() *RunningMeanStd {
	return &RunningMeanStd{
		Mean:  0,
		Var:   1,
		Count: 1e-4,
	}
}

// Update merges the moments of a batch (parallel variance algorithm)
func (r *RunningMeanStd) Update(batchMean, batchVar, batchCount float64) {
	delta := batchMean - r.Mean
	total := r.Count + batchCount

	newMean := r.Mean + delta*batchCount/total
	mA := r.Var * r.Count
	mB := batchVar * batchCount
	m2 := mA + mB + delta*delta*r.Count*batchCount/total

	r.Mean = newMean
	r.Var = m2 / total
	r.Count = total
}

// NormalizeReward scales rewards by the running standard deviation of the discounted return
type NormalizeReward struct {
	env     Environment
	rms     *RunningMeanStd
	returns float64
	gamma   float64
	epsilon float64
}

var _ Wrapper = &NormalizeReward{}

func NewNormalizeReward(env Environment) *NormalizeReward {
	return NewNormalizeRewardWith(env, 0.99, 1e-8)
}

func NewNormalizeRewardWith(env Environment, gamma, epsilon float64) *NormalizeReward {
	return &NormalizeReward{
		env:     env,
		rms:     NewRunningMeanStd(),
		gamma:   gamma,
		epsilon: epsilon,
	}
}

func (n *NormalizeReward) Reset() (Observation, error) {
	n.returns = 0
	return n.env.Reset()
}

func (n *NormalizeReward) Step(a Action) (*Transition, error) {
	tr, err := n.env.Step(a)
	if err != nil {
		return nil, err
	}
	n.returns = n.returns*n.gamma + tr.Reward
	n.rms.Update(n.returns, 0, 1)
	tr.Reward = tr.Reward / math.Sqrt(n.rms.Var+n.epsilon)
	if tr.Done {
		n.returns = 0
	}
	return tr, nil
}

// ReturnStats exposes the running statistics of the discounted return
func (n *NormalizeReward) ReturnStats() RunningMeanStd { return *n.rms }

func (n *NormalizeReward) ObservationSpace() *DictSpace { return n.env.ObservationSpace() }
func (n *NormalizeReward) ActionSpace() *Box            { return n.env.ActionSpace() }
func (n *NormalizeReward) Close() error                 { return n.env.Close() }
func (n *NormalizeReward) Unwrap() Environment          { return n.env }
