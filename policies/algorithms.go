package policies

import (
	"strings"

	"github.com/zeu5/hospitalbot-rl/types"
)

// ParseAlgorithm normalizes the algorithm name, e.g. "ppo" to PPO
func ParseAlgorithm(name string) (Algorithm, error) {
	algo := Algorithm(strings.ToUpper(strings.TrimSpace(name)))
	if _, err := DefaultParams(algo); err != nil {
		return "", err
	}
	return algo, nil
}

// NewModel builds an algorithm with its default hyperparameters overridden by overrides
func NewModel(algo Algorithm, env types.Environment, overrides map[string]float64, options Options) (*ActorCritic, error) {
	params, err := DefaultParams(algo)
	if err != nil {
		return nil, err
	}
	if err := params.Apply(overrides); err != nil {
		return nil, err
	}
	return New(algo, env, params, options)
}
