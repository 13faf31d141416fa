package monitor

import (
	"sync"
	"time"

	"github.com/zeu5/hospitalbot-rl/search"
)

// Status of the training process as served on /status
type Status struct {
	Node           string    `json:"node"`
	Mode           string    `json:"mode"`
	Phase          string    `json:"phase"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	NumTimesteps   int       `json:"num_timesteps"`
	LastMeanReward *float64  `json:"last_mean_reward,omitempty"`
	BestMeanReward *float64  `json:"best_mean_reward,omitempty"`
	TrialsFinished int       `json:"trials_finished"`
}

// Tracker collects progress reported by the training run. A nil Tracker
// ignores every update.
type Tracker struct {
	lock   *sync.Mutex
	status Status
	trials []search.FrozenTrial
}

func NewTracker(node string) *Tracker {
	now := time.Now()
	return &Tracker{
		lock: new(sync.Mutex),
		status: Status{
			Node:      node,
			Phase:     "created",
			StartedAt: now,
			UpdatedAt: now,
		},
		trials: make([]search.FrozenTrial, 0),
	}
}

func (t *Tracker) update(f func(s *Status)) {
	if t == nil {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	f(&t.status)
	t.status.UpdatedAt = time.Now()
}

func (t *Tracker) SetMode(mode string) {
	t.update(func(s *Status) { s.Mode = mode })
}

func (t *Tracker) SetPhase(phase string) {
	t.update(func(s *Status) { s.Phase = phase })
}

func (t *Tracker) SetTimesteps(n int) {
	t.update(func(s *Status) { s.NumTimesteps = n })
}

// SetEvaluation records the latest and best evaluation mean rewards
func (t *Tracker) SetEvaluation(last, best float64) {
	t.update(func(s *Status) {
		s.LastMeanReward = &last
		s.BestMeanReward = &best
	})
}

func (t *Tracker) TrialFinished(trial search.FrozenTrial) {
	if t == nil {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.trials = append(t.trials, trial.Copy())
	t.status.TrialsFinished = len(t.trials)
	t.status.UpdatedAt = time.Now()
}

func (t *Tracker) Status() Status {
	if t == nil {
		return Status{}
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.status
}

func (t *Tracker) Trials() []search.FrozenTrial {
	if t == nil {
		return nil
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	trials := make([]search.FrozenTrial, len(t.trials))
	for i, tr := range t.trials {
		trials[i] = tr.Copy()
	}
	return trials
}
