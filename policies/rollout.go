package policies

// rollout buffer of on-policy transitions
type rollout struct {
	features   [][]float64
	actions    [][]float64
	logProbs   []float64
	values     []float64
	rewards    []float64
	dones      []bool
	advantages []float64
	returns    []float64
}

func newRollout(capacity int) *rollout {
	return &rollout{
		features: make([][]float64, 0, capacity),
		actions:  make([][]float64, 0, capacity),
		logProbs: make([]float64, 0, capacity),
		values:   make([]float64, 0, capacity),
		rewards:  make([]float64, 0, capacity),
		dones:    make([]bool, 0, capacity),
	}
}

func (r *rollout) add(x, a []float64, logProb, value, reward float64, done bool) {
	r.features = append(r.features, x)
	r.actions = append(r.actions, a)
	r.logProbs = append(r.logProbs, logProb)
	r.values = append(r.values, value)
	r.rewards = append(r.rewards, reward)
	r.dones = append(r.dones, done)
}

func (r *rollout) len() int {
	return len(r.rewards)
}

// computeGAE fills advantages and returns with generalized advantage
// estimation, lastValue bootstraps the step following the rollout
func (r *rollout) computeGAE(lastValue, gamma, lambda float64) {
	n := r.len()
	r.advantages = make([]float64, n)
	r.returns = make([]float64, n)
	lastGAE := 0.0
	for t := n - 1; t >= 0; t-- {
		nextNonTerminal := 1.0
		if r.dones[t] {
			nextNonTerminal = 0.0
		}
		nextValue := lastValue
		if t < n-1 {
			nextValue = r.values[t+1]
		}
		delta := r.rewards[t] + gamma*nextValue*nextNonTerminal - r.values[t]
		lastGAE = delta + gamma*lambda*nextNonTerminal*lastGAE
		r.advantages[t] = lastGAE
		r.returns[t] = lastGAE + r.values[t]
	}
}
