package search

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs against a live server, set HOSPITALBOT_TEST_REDIS to its address
func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("HOSPITALBOT_TEST_REDIS")
	if addr == "" {
		t.Skip("HOSPITALBOT_TEST_REDIS not set")
	}
	ctx := context.Background()
	st := NewRedisStorage(addr)
	defer st.Close()
	require.NoError(t, st.Ping(ctx))

	name := "test-" + uuid.NewString()
	_, err := st.Trials(ctx, name)
	require.ErrorIs(t, err, ErrUnknownStudy)

	s, err := CreateStudy(ctx, StudyConfig{Name: name, Storage: st, Sampler: NewRandomSampler(1)})
	require.NoError(t, err)
	require.ErrorIs(t, st.CreateStudy(ctx, name, Minimize), ErrDirectionMismatch)

	objective := func(ctx context.Context, trial *Trial) (float64, error) {
		return trial.SuggestLogUniform("gamma", 0.8, 0.9999)
	}
	require.NoError(t, s.Optimize(ctx, objective, 3))
	trials, err := s.Trials(ctx)
	require.NoError(t, err)
	require.Len(t, trials, 3)
	for i, tr := range trials {
		require.Equal(t, i, tr.Number)
		require.Equal(t, TrialComplete, tr.State)
		require.Equal(t, tr.Value, tr.Params["gamma"])
	}
}
