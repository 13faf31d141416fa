package policies

import (
	"sort"

	"github.com/pkg/errors"
)

// Algorithm name, as used on the command line and in saved models
type Algorithm string

const (
	PPO  Algorithm = "PPO"
	A2C  Algorithm = "A2C"
	DQN  Algorithm = "DQN"
	DDPG Algorithm = "DDPG"
)

var (
	ErrUnsupportedAlgorithm = errors.New("algorithm not supported")
	ErrUnknownHyperparam    = errors.New("unknown hyperparameter")
)

// Params are the hyperparameters of the actor-critic learner.
// A zero ClipRange disables clipping of the surrogate objective.
type Params struct {
	NSteps       int     `json:"n_steps"`
	BatchSize    int     `json:"batch_size"`
	NEpochs      int     `json:"n_epochs"`
	Gamma        float64 `json:"gamma"`
	LearningRate float64 `json:"learning_rate"`
	ClipRange    float64 `json:"clip_range"`
	GAELambda    float64 `json:"gae_lambda"`
	EntCoef      float64 `json:"ent_coef"`
	VFCoef       float64 `json:"vf_coef"`
	MaxGradNorm  float64 `json:"max_grad_norm"`
	NormalizeAdv bool    `json:"normalize_advantage"`
	LogStdInit   float64 `json:"log_std_init"`
}

// DefaultParams for the algorithm
func DefaultParams(algo Algorithm) (Params, error) {
	switch algo {
	case PPO:
		return Params{
			NSteps:       2048,
			BatchSize:    64,
			NEpochs:      10,
			Gamma:        0.99,
			LearningRate: 3e-4,
			ClipRange:    0.2,
			GAELambda:    0.95,
			EntCoef:      0.0,
			VFCoef:       0.5,
			MaxGradNorm:  0.5,
			NormalizeAdv: true,
		}, nil
	case A2C:
		return Params{
			NSteps:       5,
			BatchSize:    5,
			NEpochs:      1,
			Gamma:        0.99,
			LearningRate: 7e-4,
			ClipRange:    0,
			GAELambda:    1.0,
			EntCoef:      0.0,
			VFCoef:       0.5,
			MaxGradNorm:  0.5,
			NormalizeAdv: false,
		}, nil
	case DQN, DDPG:
		return Params{}, errors.Wrapf(ErrUnsupportedAlgorithm, "%s needs a replay buffer learner", algo)
	}
	return Params{}, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", string(algo))
}

// Apply overrides the parameters named in values
func (p *Params) Apply(values map[string]float64) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := values[name]
		switch name {
		case "n_steps":
			p.NSteps = int(v)
		case "batch_size":
			p.BatchSize = int(v)
		case "n_epochs":
			p.NEpochs = int(v)
		case "gamma":
			p.Gamma = v
		case "learning_rate":
			p.LearningRate = v
		case "clip_range":
			p.ClipRange = v
		case "gae_lambda":
			p.GAELambda = v
		case "ent_coef":
			p.EntCoef = v
		case "vf_coef":
			p.VFCoef = v
		case "max_grad_norm":
			p.MaxGradNorm = v
		case "log_std_init":
			p.LogStdInit = v
		default:
			return errors.Wrap(ErrUnknownHyperparam, name)
		}
	}
	return p.Validate()
}

func (p Params) Validate() error {
	switch {
	case p.NSteps <= 0:
		return errors.Errorf("n_steps must be positive, got %d", p.NSteps)
	case p.BatchSize <= 0:
		return errors.Errorf("batch_size must be positive, got %d", p.BatchSize)
	case p.NEpochs <= 0:
		return errors.Errorf("n_epochs must be positive, got %d", p.NEpochs)
	case p.Gamma < 0 || p.Gamma > 1:
		return errors.Errorf("gamma must be in [0, 1], got %v", p.Gamma)
	case p.GAELambda < 0 || p.GAELambda > 1:
		return errors.Errorf("gae_lambda must be in [0, 1], got %v", p.GAELambda)
	case p.LearningRate <= 0:
		return errors.Errorf("learning_rate must be positive, got %v", p.LearningRate)
	case p.ClipRange < 0:
		return errors.Errorf("clip_range cannot be negative, got %v", p.ClipRange)
	}
	return nil
}
