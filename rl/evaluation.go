package rl

import (
	"context"

	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/types"
	"gonum.org/v1/gonum/stat"
)

// EvaluatePolicy runs nEpisodes episodes and returns the mean and standard
// deviation of the episode rewards
func EvaluatePolicy(ctx context.Context, model Predictor, env types.Environment, nEpisodes int, deterministic bool) (float64, float64, error) {
	if nEpisodes <= 0 {
		return 0, 0, errors.New("number of evaluation episodes must be positive")
	}
	agent := types.NewAgent(&types.AgentConfig{
		Episodes:    nEpisodes,
		Policy:      AsPolicy(model, deterministic),
		Environment: env,
	})
	traces, err := agent.Run(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "evaluating policy")
	}
	rewards := make([]float64, len(traces))
	for i, t := range traces {
		rewards[i] = t.TotalReward()
	}
	mean, std := stat.PopMeanStdDev(rewards, nil)
	return mean, std, nil
}
