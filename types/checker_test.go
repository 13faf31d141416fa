package types

import (
	"math"
	"testing"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCheckEnvAcceptsWellFormedEnv(t *testing.T) {
	env := NewNormalizeReward(NewTimeLimit(newLineEnv(5), 10))
	require.NoError(t, CheckEnv(env, log.NewNopLogger()))
}

func TestCheckEnvRejectsOutOfBoundsObservation(t *testing.T) {
	inner := newLineEnv(5)
	inner.badObs = true
	err := CheckEnv(inner, log.NewNopLogger())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCheckFailed))

	var cerr *CheckError
	require.True(t, errors.As(err, &cerr))
	require.Len(t, cerr.Problems, 2)
}

func TestCheckEnvRejectsNonFiniteReward(t *testing.T) {
	inner := newLineEnv(5)
	inner.reward = math.NaN()
	require.ErrorContains(t, CheckEnv(inner, log.NewNopLogger()), "not finite")
}

func TestCheckEnvPropagatesStepError(t *testing.T) {
	inner := newLineEnv(5)
	inner.stepErr = errors.New("bridge down")
	require.ErrorContains(t, CheckEnv(inner, log.NewNopLogger()), "bridge down")
}

type badSpaceEnv struct{ *lineEnv }

func (b badSpaceEnv) ActionSpace() *Box {
	return NewBox([]float64{1, 0}, []float64{0})
}

func TestCheckEnvRejectsMalformedSpaces(t *testing.T) {
	err := CheckEnv(badSpaceEnv{newLineEnv(3)}, log.NewNopLogger())
	require.ErrorContains(t, err, "mismatched bounds")
}
