package policies

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultParams(t *testing.T) {
	p, err := DefaultParams(PPO)
	require.NoError(t, err)
	require.Equal(t, 2048, p.NSteps)
	require.Equal(t, 0.2, p.ClipRange)

	a, err := DefaultParams(A2C)
	require.NoError(t, err)
	require.Equal(t, 5, a.NSteps)
	require.Zero(t, a.ClipRange)

	for _, algo := range []Algorithm{DQN, DDPG, "SAC"} {
		_, err := DefaultParams(algo)
		require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	}
}

func TestApply(t *testing.T) {
	p, _ := DefaultParams(PPO)
	require.NoError(t, p.Apply(map[string]float64{
		"n_steps":       256,
		"gamma":         0.95,
		"learning_rate": 1e-3,
		"clip_range":    0.3,
		"gae_lambda":    0.9,
		"ent_coef":      0.01,
		"vf_coef":       0.7,
	}))
	require.Equal(t, 256, p.NSteps)
	require.Equal(t, 0.95, p.Gamma)
	require.Equal(t, 0.7, p.VFCoef)

	require.ErrorIs(t, p.Apply(map[string]float64{"momentum": 0.9}), ErrUnknownHyperparam)
	require.Error(t, p.Apply(map[string]float64{"gamma": 1.5}))
	require.Error(t, p.Apply(map[string]float64{"n_steps": 0}))
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(PPO, newWalkEnv(), map[string]float64{"gamma": 0.9}, Options{})
	require.NoError(t, err)
	require.Equal(t, 0.9, m.Params().Gamma)

	_, err = NewModel(PPO, newWalkEnv(), map[string]float64{"foo": 1}, Options{})
	require.ErrorIs(t, err, ErrUnknownHyperparam)
	_, err = NewModel(DQN, newWalkEnv(), nil, Options{})
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	_, err = New(PPO, nil, m.Params(), Options{})
	require.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	algo, err := ParseAlgorithm(" ppo ")
	require.NoError(t, err)
	require.Equal(t, PPO, algo)
	_, err = ParseAlgorithm("ddpg")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
