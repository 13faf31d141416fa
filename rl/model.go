// Package rl defines what a trainable model looks like to the training
// orchestration: learning with callbacks, prediction, persistence, evaluation
// and the per-run progress logs.
package rl

import (
	"context"

	"github.com/zeu5/hospitalbot-rl/types"
)

// Predictor maps observations to actions
type Predictor interface {
	Predict(obs types.Observation, deterministic bool) (types.Action, error)
}

// LearnConfig parameters of a single Learn call
type LearnConfig struct {
	TotalTimesteps int
	Callback       Callback
	// ResetNumTimesteps restarts the timestep counter and opens a new run log
	ResetNumTimesteps bool
	// TBLogName names the run log directory
	TBLogName string
}

// Model bound to an environment
type Model interface {
	Predictor
	Learn(ctx context.Context, config LearnConfig) error
	// Save persists the model, the extension is added when missing
	Save(path string) error
	NumTimesteps() int
	Env() types.Environment
	// Recorder receives metrics for the current run log
	Recorder() Recorder
}

// Recorder accumulates named scalar metrics
type Recorder interface {
	Record(key string, value float64)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, float64) {}

// NopRecorder discards every metric
func NopRecorder() Recorder {
	return nopRecorder{}
}

// AsPolicy adapts a predictor to the types.Policy interface
func AsPolicy(p Predictor, deterministic bool) types.Policy {
	return &predictorPolicy{p: p, deterministic: deterministic}
}

type predictorPolicy struct {
	p             Predictor
	deterministic bool
}

func (pp *predictorPolicy) NextAction(_ int, obs types.Observation) (types.Action, error) {
	return pp.p.Predict(obs, pp.deterministic)
}
