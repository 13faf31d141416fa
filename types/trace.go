package types

// Trace records the rewards of an episode step by step
type Trace struct {
	rewards []float64
	done    bool
}

func NewTrace() *Trace {
	return &Trace{
		rewards: make([]float64, 0),
	}
}

func (t *Trace) Append(_ Observation, _ Action, tr *Transition) {
	t.rewards = append(t.rewards, tr.Reward)
	t.done = tr.Done
}

func (t *Trace) Len() int {
	return len(t.rewards)
}

// Done reports whether the last appended step ended the episode
func (t *Trace) Done() bool {
	return t.done
}

// TotalReward is the undiscounted sum of rewards in the trace
func (t *Trace) TotalReward() float64 {
	sum := 0.0
	for _, r := range t.rewards {
		sum += r
	}
	return sum
}
