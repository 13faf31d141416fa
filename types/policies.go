package types

// Policy picks the next action given the current observation
type Policy interface {
	NextAction(step int, obs Observation) (Action, error)
}

// RandomPolicy samples uniformly from the action space
type RandomPolicy struct {
	space *Box
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy(space *Box) *RandomPolicy {
	return &RandomPolicy{
		space: space,
	}
}

func (r *RandomPolicy) NextAction(_ int, _ Observation) (Action, error) {
	return r.space.Sample(), nil
}
