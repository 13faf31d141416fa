package types

import "errors"

// lineEnv walks one unit per step and is done after length steps
type lineEnv struct {
	length  int
	pos     int
	done    bool
	resets  int
	steps   int
	closed  bool
	badObs  bool
	reward  float64
	stepErr error
}

var _ Environment = &lineEnv{}

func newLineEnv(length int) *lineEnv {
	return &lineEnv{length: length, reward: 1}
}

func (l *lineEnv) Reset() (Observation, error) {
	l.pos = 0
	l.done = false
	l.resets++
	return l.obs(), nil
}

func (l *lineEnv) Step(a Action) (*Transition, error) {
	if l.stepErr != nil {
		return nil, l.stepErr
	}
	if l.done {
		return nil, errors.New("step on a completed episode")
	}
	l.steps++
	l.pos++
	l.done = l.pos >= l.length
	return &Transition{Observation: l.obs(), Reward: l.reward, Done: l.done, Info: Info{}}, nil
}

func (l *lineEnv) obs() Observation {
	if l.badObs {
		return Observation{"pos": {-5}}
	}
	return Observation{"pos": {float64(l.pos)}}
}

func (l *lineEnv) ObservationSpace() *DictSpace {
	return NewDictSpace(map[string]*Box{"pos": NewUniformBox(0, 100, 1)})
}

func (l *lineEnv) ActionSpace() *Box {
	return NewUniformBox(-1, 1, 1)
}

func (l *lineEnv) Close() error {
	l.closed = true
	return nil
}
