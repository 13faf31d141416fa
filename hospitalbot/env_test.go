package hospitalbot

import (
	"math"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/hospitalbot-rl/types"
)

func emptyWard() Config {
	c := DefaultConfig()
	c.Obstacles = nil
	c.RandomTarget = false
	return c
}

func TestEnvPassesCheck(t *testing.T) {
	env, err := NewEnv(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, types.CheckEnv(types.NewNormalizeReward(env), log.NewNopLogger()))
}

func TestEnvReachesGoal(t *testing.T) {
	c := emptyWard()
	c.Target = Point{X: 2, Y: 1}
	env, err := NewEnv(c)
	require.NoError(t, err)

	obs, err := env.Reset()
	require.NoError(t, err)
	require.InDelta(t, 1.0, obs[AgentKey][0], 1e-9)
	require.InDelta(t, 0.0, obs[AgentKey][1], 1e-9)

	var tr *types.Transition
	for i := 0; i < 3; i++ {
		tr, err = env.Step(types.Action{1, 0})
		require.NoError(t, err)
	}
	require.True(t, tr.Done)
	require.Equal(t, true, tr.Info["goal"])
	require.InDelta(t, GoalReward+2.5, tr.Reward, 1e-9)

	_, err = env.Step(types.Action{1, 0})
	require.ErrorIs(t, err, ErrEpisodeDone)
}

func TestEnvCollidesWithWall(t *testing.T) {
	c := emptyWard()
	c.Start = Pose{Point: Point{X: 1, Y: 1}, Theta: -math.Pi / 2}
	env, err := NewEnv(c)
	require.NoError(t, err)
	_, err = env.Reset()
	require.NoError(t, err)

	var tr *types.Transition
	for i := 0; i < 10; i++ {
		tr, err = env.Step(types.Action{1, 0})
		require.NoError(t, err)
		if tr.Done {
			break
		}
	}
	require.True(t, tr.Done)
	require.Equal(t, true, tr.Info["collision"])
	require.Less(t, tr.Reward, CollisionReward+1)
}

func TestEnvLaserSeesObstacle(t *testing.T) {
	c := emptyWard()
	c.Obstacles = []Obstacle{{Center: Point{X: 3, Y: 1}, Radius: 0.5}}
	env, err := NewEnv(c)
	require.NoError(t, err)
	obs, err := env.Reset()
	require.NoError(t, err)
	// beam 0 points along the heading, towards the obstacle
	require.InDelta(t, 1.5, obs[LaserKey][0], 1e-9)
	// beam pointing backwards hits the wall at x = 0
	require.InDelta(t, 1.0, obs[LaserKey][c.LaserBeams/2], 1e-9)
}

func TestRandomTargetsAreFree(t *testing.T) {
	c := DefaultConfig()
	c.Seed = 42
	env, err := NewEnv(c)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		_, err := env.Reset()
		require.NoError(t, err)
		target := env.Target()
		require.True(t, env.free(target, c.TargetMargin))
		require.GreaterOrEqual(t, target.Dist(c.Start.Point), c.MinTargetDistance)
	}
}

func TestRegisterCapsEpisodes(t *testing.T) {
	registry := types.NewRegistry(types.ConflictReject)
	require.NoError(t, Register(registry, Constructor(DefaultConfig())))
	require.Error(t, Register(registry, Constructor(DefaultConfig())))

	env, err := registry.Make(EnvID)
	require.NoError(t, err)
	limited, ok := env.(*types.TimeLimit)
	require.True(t, ok)
	require.Equal(t, MaxEpisodeSteps, limited.MaxSteps())
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	c.Start = Pose{Point: Point{X: -1, Y: 2}}
	_, err := NewEnv(c)
	require.Error(t, err)
}
