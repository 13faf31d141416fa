package search

import (
	"context"
	"math"
	"os"
	"path"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newStudy(t *testing.T, direction Direction) *Study {
	s, err := CreateStudy(context.Background(), StudyConfig{
		Name:      "test",
		Direction: direction,
		Sampler:   NewRandomSampler(7),
	})
	require.NoError(t, err)
	return s
}

func TestRandomSamplerRespectsDistributions(t *testing.T) {
	s := NewRandomSampler(1)
	dists := []Distribution{
		{Kind: IntDistribution, Low: 2048, High: 8192},
		{Kind: IntDistribution, Low: 3, High: 3},
		{Kind: UniformDistribution, Low: 0.1, High: 0.4},
		{Kind: LogUniformDistribution, Low: 1e-8, High: 0.1},
		{Kind: CategoricalDistribution, Choices: []float64{32, 64, 128}},
	}
	for _, d := range dists {
		require.NoError(t, d.Validate())
		for i := 0; i < 200; i++ {
			v := s.Sample(FrozenTrial{}, "p", d)
			require.True(t, d.Contains(v), "%v not in %+v", v, d)
		}
	}

	require.Error(t, Distribution{Kind: LogUniformDistribution, Low: 0, High: 1}.Validate())
	require.Error(t, Distribution{Kind: UniformDistribution, Low: 2, High: 1}.Validate())
	require.Error(t, Distribution{Kind: CategoricalDistribution}.Validate())
}

func TestLogUniformCoversDecades(t *testing.T) {
	s := NewRandomSampler(3)
	d := Distribution{Kind: LogUniformDistribution, Low: 1e-6, High: 1e-3}
	below := 0
	for i := 0; i < 1000; i++ {
		if s.Sample(FrozenTrial{}, "lr", d) < 1e-5 {
			below++
		}
	}
	// one decade out of three
	require.InDelta(t, 333, below, 80)
}

func TestOptimizeSelectsBestTrial(t *testing.T) {
	s := newStudy(t, Maximize)
	values := []float64{1, 5, 3}
	objective := func(ctx context.Context, trial *Trial) (float64, error) {
		x, err := trial.SuggestUniform("x", 0, 1)
		if err != nil {
			return 0, err
		}
		// suggesting again returns the same value
		again, err := trial.SuggestUniform("x", 0, 1)
		require.NoError(t, err)
		require.Equal(t, x, again)
		return values[trial.Number()], nil
	}
	seen := 0
	require.NoError(t, s.Optimize(context.Background(), objective, 3, func(_ *Study, ft FrozenTrial) { seen++ }))
	require.Equal(t, 3, seen)

	best, err := s.BestTrial(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, best.Number)
	value, _ := s.BestValue(context.Background())
	require.Equal(t, 5.0, value)
	params, _ := s.BestParams(context.Background())
	require.Equal(t, best.Params, params)

	m := newStudy(t, Minimize)
	require.NoError(t, m.Optimize(context.Background(), objective, 3))
	best, err = m.BestTrial(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, best.Number)
}

func TestFailedTrialsDoNotStopTheStudy(t *testing.T) {
	s := newStudy(t, Maximize)
	objective := func(ctx context.Context, trial *Trial) (float64, error) {
		switch trial.Number() {
		case 0:
			return 0, errors.New("diverged")
		case 1:
			panic("boom")
		case 2:
			return math.NaN(), nil
		}
		return 2, nil
	}
	require.NoError(t, s.Optimize(context.Background(), objective, 4))

	trials, err := s.Trials(context.Background())
	require.NoError(t, err)
	require.Len(t, trials, 4)
	for _, tr := range trials[:3] {
		require.Equal(t, TrialFail, tr.State)
		require.NotEmpty(t, tr.UserAttrs[UserAttrFailReason])
	}
	require.Contains(t, trials[1].UserAttrs[UserAttrFailReason], "boom")
	require.Equal(t, TrialComplete, trials[3].State)

	empty := newStudy(t, Maximize)
	_, err = empty.BestTrial(context.Background())
	require.ErrorIs(t, err, ErrNoCompletedTrials)
}

func TestOptimizeStopsOnCancel(t *testing.T) {
	s := newStudy(t, Maximize)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	objective := func(ctx context.Context, trial *Trial) (float64, error) {
		calls++
		cancel()
		return 0, ctx.Err()
	}
	err := s.Optimize(ctx, objective, 5)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)

	trials, _ := s.Trials(context.Background())
	require.Len(t, trials, 1)
	require.Equal(t, TrialFail, trials[0].State)
}

func TestSuggestRejectsChangedDistribution(t *testing.T) {
	s := newStudy(t, Maximize)
	objective := func(ctx context.Context, trial *Trial) (float64, error) {
		if _, err := trial.SuggestInt("n", 1, 10); err != nil {
			return 0, err
		}
		_, err := trial.SuggestInt("n", 1, 20)
		return 0, err
	}
	require.NoError(t, s.Optimize(context.Background(), objective, 1))
	trials, _ := s.Trials(context.Background())
	require.Equal(t, TrialFail, trials[0].State)
}

func TestInMemoryStorage(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStorage()
	_, err := st.NextTrialNumber(ctx, "missing")
	require.ErrorIs(t, err, ErrUnknownStudy)

	require.NoError(t, st.CreateStudy(ctx, "a", Maximize))
	require.NoError(t, st.CreateStudy(ctx, "a", Maximize))
	require.ErrorIs(t, st.CreateStudy(ctx, "a", Minimize), ErrDirectionMismatch)

	n, _ := st.NextTrialNumber(ctx, "a")
	require.Equal(t, 0, n)
	n, _ = st.NextTrialNumber(ctx, "a")
	require.Equal(t, 1, n)

	tr := newFrozenTrial(1)
	tr.Params["x"] = 1
	require.NoError(t, st.SaveTrial(ctx, "a", tr))
	tr.Params["x"] = 2
	trials, err := st.Trials(ctx, "a")
	require.NoError(t, err)
	require.Len(t, trials, 1)
	require.Equal(t, 1.0, trials[0].Params["x"])
}

func TestDefaultStudyName(t *testing.T) {
	s, err := CreateStudy(context.Background(), StudyConfig{})
	require.NoError(t, err)
	require.Regexp(t, "^study-[0-9a-f-]{36}$", s.Name)
	require.Equal(t, "maximize", s.Direction.String())
}

func TestExports(t *testing.T) {
	s := newStudy(t, Maximize)
	objective := func(ctx context.Context, trial *Trial) (float64, error) {
		if _, err := trial.SuggestInt("n_steps", 2048, 8192); err != nil {
			return 0, err
		}
		if trial.Number() == 1 {
			return 0, errors.New("bad trial")
		}
		return 10, nil
	}
	require.NoError(t, s.Optimize(context.Background(), objective, 2))
	trials, _ := s.Trials(context.Background())

	dir := t.TempDir()
	xlsx := path.Join(dir, "tuning", "study.xlsx")
	require.NoError(t, ExportXLSX(trials, xlsx))
	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(trialsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"number", "state", "value", "datetime_start", "datetime_complete", "params_n_steps", "user_attrs_fail_reason"}, rows[0])
	require.Equal(t, "complete", rows[1][1])
	require.Equal(t, "fail", rows[2][1])
	require.Equal(t, "bad trial", rows[2][6])

	params, _ := s.BestParams(context.Background())
	yml := path.Join(dir, "tuning", "best_params.yaml")
	require.NoError(t, WriteParamsYAML(params, yml))
	read, err := ReadParamsYAML(yml)
	require.NoError(t, err)
	require.Equal(t, params, read)

	_, err = os.Stat(yml)
	require.NoError(t, err)
}
