package policies

import (
	"context"
	"math"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeu5/hospitalbot-rl/rl"
	"github.com/zeu5/hospitalbot-rl/types"
)

// walkEnv moves a point along a line, rewarding closeness to the goal
type walkEnv struct {
	dims  int
	pos   float64
	steps int
	goal  float64
}

func newWalkEnv() *walkEnv {
	return &walkEnv{dims: 1, goal: 7}
}

func (w *walkEnv) obs() types.Observation {
	v := make([]float64, w.dims)
	for i := range v {
		v[i] = w.pos
	}
	return types.Observation{"pos": v}
}

func (w *walkEnv) Reset() (types.Observation, error) {
	w.pos, w.steps = 5, 0
	return w.obs(), nil
}

func (w *walkEnv) Step(a types.Action) (*types.Transition, error) {
	w.steps++
	w.pos = math.Max(0, math.Min(10, w.pos+a[0]))
	return &types.Transition{
		Observation: w.obs(),
		Reward:      -math.Abs(w.pos - w.goal),
		Done:        w.steps >= 10,
	}, nil
}

func (w *walkEnv) ObservationSpace() *types.DictSpace {
	return types.NewDictSpace(map[string]*types.Box{"pos": types.NewUniformBox(0, 10, w.dims)})
}
func (w *walkEnv) ActionSpace() *types.Box { return types.NewUniformBox(-1, 1, 1) }
func (w *walkEnv) Close() error            { return nil }

type stopAfter struct {
	n     int
	calls int
	ended bool
}

func (s *stopAfter) Init(rl.Model) error { return nil }
func (s *stopAfter) OnStep(context.Context) (bool, error) {
	s.calls++
	return s.calls < s.n, nil
}
func (s *stopAfter) OnTrainingEnd() { s.ended = true }

func smallParams(t *testing.T) Params {
	p, err := DefaultParams(PPO)
	require.NoError(t, err)
	p.NSteps = 16
	p.BatchSize = 8
	p.NEpochs = 2
	return p
}

func TestLearnCompletesRollouts(t *testing.T) {
	logDir := t.TempDir()
	m, err := New(PPO, newWalkEnv(), smallParams(t), Options{Seed: 1, TensorboardLog: logDir})
	require.NoError(t, err)

	require.NoError(t, m.Learn(context.Background(), rl.LearnConfig{TotalTimesteps: 40, ResetNumTimesteps: true}))
	require.Equal(t, 48, m.NumTimesteps())
	require.NotEmpty(t, m.EpisodeRewards())
	_, err = os.Stat(path.Join(logDir, "PPO_1", rl.ProgressFile))
	require.NoError(t, err)

	// continuing keeps the counter and the run directory
	require.NoError(t, m.Learn(context.Background(), rl.LearnConfig{TotalTimesteps: 16}))
	require.Equal(t, 64, m.NumTimesteps())
	_, err = os.Stat(path.Join(logDir, "PPO_2"))
	require.True(t, os.IsNotExist(err))

	for _, v := range m.theta {
		require.False(t, math.IsNaN(v))
	}
}

func TestLearnStoppedByCallback(t *testing.T) {
	m, err := New(A2C, newWalkEnv(), smallParams(t), Options{Seed: 2})
	require.NoError(t, err)

	cb := &stopAfter{n: 5}
	require.NoError(t, m.Learn(context.Background(), rl.LearnConfig{TotalTimesteps: 100, Callback: cb}))
	require.Equal(t, 5, m.NumTimesteps())
	require.Equal(t, 5, cb.calls)
	require.True(t, cb.ended)
}

func TestLearnCancelled(t *testing.T) {
	m, err := New(PPO, newWalkEnv(), smallParams(t), Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Learn(ctx, rl.LearnConfig{TotalTimesteps: 10}), context.Canceled)
	require.Error(t, m.Learn(context.Background(), rl.LearnConfig{TotalTimesteps: 0}))
}

func TestPredictStaysInActionSpace(t *testing.T) {
	env := newWalkEnv()
	m, err := New(PPO, env, smallParams(t), Options{Seed: 3})
	require.NoError(t, err)
	m.theta[m.layout.logStd(0)] = maxLogStd

	obs, _ := env.Reset()
	for i := 0; i < 50; i++ {
		a, err := m.Predict(obs, false)
		require.NoError(t, err)
		require.True(t, env.ActionSpace().Contains(a))
	}
	_, err = m.Predict(types.Observation{"other": {1}}, true)
	require.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	env := newWalkEnv()
	m, err := New(PPO, env, smallParams(t), Options{Seed: 4})
	require.NoError(t, err)
	require.NoError(t, m.Learn(context.Background(), rl.LearnConfig{TotalTimesteps: 16}))

	p := path.Join(t.TempDir(), "rl_models", "best_model")
	require.NoError(t, m.Save(p))
	_, err = os.Stat(p + ModelExt)
	require.NoError(t, err)

	loaded, err := Load(p, newWalkEnv(), Options{})
	require.NoError(t, err)
	require.Equal(t, m.NumTimesteps(), loaded.NumTimesteps())
	require.Equal(t, m.Params(), loaded.Params())
	require.Equal(t, PPO, loaded.Algorithm())

	obs, _ := env.Reset()
	want, err := m.Predict(obs, true)
	require.NoError(t, err)
	got, err := loaded.Predict(obs, true)
	require.NoError(t, err)
	require.InDeltaSlice(t, want, got, 1e-12)

	// explicit extension works too
	_, err = Load(p+ModelExt, env, Options{})
	require.NoError(t, err)
}

func TestLoadRejectsOtherSpaces(t *testing.T) {
	m, err := New(PPO, newWalkEnv(), smallParams(t), Options{})
	require.NoError(t, err)
	p := path.Join(t.TempDir(), "model")
	require.NoError(t, m.Save(p))

	wide := newWalkEnv()
	wide.dims = 3
	_, err = Load(p, wide, Options{})
	require.ErrorIs(t, err, ErrIncompatibleEnv)

	_, err = Load(path.Join(t.TempDir(), "missing"), newWalkEnv(), Options{})
	require.Error(t, err)
}

func TestComputeGAE(t *testing.T) {
	buf := newRollout(3)
	for i := 0; i < 3; i++ {
		buf.add(nil, nil, 0, 0, 1, i == 2)
	}
	buf.computeGAE(5, 1, 1)
	require.Equal(t, []float64{3, 2, 1}, buf.advantages)
	require.Equal(t, []float64{3, 2, 1}, buf.returns)

	buf.dones[2] = false
	buf.computeGAE(5, 1, 1)
	require.Equal(t, []float64{8, 7, 6}, buf.advantages)

	buf.computeGAE(0, 0.5, 0)
	require.Equal(t, []float64{1, 1, 1}, buf.advantages)
}

func TestAdamMinimizes(t *testing.T) {
	theta := []float64{0}
	opt := newAdam(1)
	for i := 0; i < 2000; i++ {
		opt.step(theta, []float64{2 * (theta[0] - 3)}, 0.05)
	}
	require.InDelta(t, 3.0, theta[0], 0.1)
}
