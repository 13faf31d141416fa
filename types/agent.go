package types

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

type AgentConfig struct {
	Episodes    int
	Policy      Policy
	Environment Environment
	Logger      log.Logger
	// LogKey is the observation component logged at each step, empty logs nothing
	LogKey string
}

// Agent runs a policy on an environment episode after episode
type Agent struct {
	config *AgentConfig
	// collects the traces of the run
	// Only populated if the Run function is invoked
	traces      []*Trace
	policy      Policy
	environment Environment
	logger      log.Logger
}

// Instantiates a new Agent
func NewAgent(config *AgentConfig) *Agent {
	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Agent{
		config:      config,
		traces:      make([]*Trace, 0, config.Episodes),
		policy:      config.Policy,
		environment: config.Environment,
		logger:      logger,
	}
}

// Run the agent for the configured number of episodes, each until the environment reports done
func (a *Agent) Run(ctx context.Context) ([]*Trace, error) {
	for i := 0; i < a.config.Episodes; i++ {
		trace, err := a.runEpisode(ctx, i)
		if trace != nil {
			a.traces = append(a.traces, trace)
		}
		if err != nil {
			return a.traces, errors.Wrapf(err, "episode %d", i)
		}
	}
	return a.traces, nil
}

func (a *Agent) Traces() []*Trace {
	return a.traces
}

// run a single episode and return the resulting trace
func (a *Agent) runEpisode(ctx context.Context, episode int) (*Trace, error) {
	obs, err := a.environment.Reset()
	if err != nil {
		return nil, err
	}
	trace := NewTrace()

	for step := 0; ; step++ {
		select {
		case <-ctx.Done():
			return trace, ctx.Err()
		default:
		}

		action, err := a.policy.NextAction(step, obs)
		if err != nil {
			return trace, err
		}
		tr, err := a.environment.Step(action)
		if err != nil {
			return trace, err
		}
		trace.Append(obs, action, tr)

		keyvals := []interface{}{"msg", "step", "episode", episode, "step", step, "reward", tr.Reward}
		if a.config.LogKey != "" {
			keyvals = append(keyvals, a.config.LogKey, fmt.Sprint(tr.Observation[a.config.LogKey]))
		}
		level.Info(a.logger).Log(keyvals...)

		obs = tr.Observation
		if tr.Done {
			return trace, nil
		}
	}
}
