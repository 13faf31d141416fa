package rl

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/zeu5/hospitalbot-rl/types"
	"github.com/zeu5/hospitalbot-rl/util"
	"gonum.org/v1/plot/plotter"
)

const (
	ProgressFile = "progress.jsonl"
	CurveFile    = "learning_curve.png"
)

// LatestRunID returns the highest N among the <name>_N directories in logDir, 0 if none
func LatestRunID(logDir, name string) int {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return 0
	}
	maxID := 0
	prefix := name + "_"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix))
		if err == nil && id > maxID {
			maxID = id
		}
	}
	return maxID
}

// RunLogger writes the metrics of one training run to logDir/<name>_<id>:
// one JSON line per dump in progress.jsonl and a learning curve PNG on Close
type RunLogger struct {
	dir     string
	logger  log.Logger
	verbose int

	current map[string]float64
	history map[string]plotter.XYs
}

var _ Recorder = &RunLogger{}

// NewRunLogger opens the run directory. When resetNumTimesteps is false and a
// previous run exists its directory is reused so that curves continue.
// An empty logDir keeps metrics in memory only.
func NewRunLogger(logDir, name string, resetNumTimesteps bool, logger log.Logger, verbose int) (*RunLogger, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &RunLogger{
		logger:  logger,
		verbose: verbose,
		current: make(map[string]float64),
		history: make(map[string]plotter.XYs),
	}
	if logDir == "" {
		return r, nil
	}

	runID := LatestRunID(logDir, name)
	if resetNumTimesteps || runID == 0 {
		runID++
	}
	r.dir = path.Join(logDir, fmt.Sprintf("%s_%d", name, runID))
	if err := util.EnsureDirs(r.dir); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir of the run, empty when logging to memory only
func (r *RunLogger) Dir() string {
	return r.dir
}

func (r *RunLogger) Record(key string, value float64) {
	r.current[key] = value
}

// Dump flushes the recorded metrics at the given timestep
func (r *RunLogger) Dump(timesteps int) error {
	if len(r.current) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.current))
	for k := range r.current {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make(map[string]float64, len(keys)+1)
	keyvals := []interface{}{"msg", "progress", "time/total_timesteps", timesteps}
	for _, k := range keys {
		v := r.current[k]
		row[k] = v
		r.history[k] = append(r.history[k], plotter.XY{X: float64(timesteps), Y: v})
		keyvals = append(keyvals, k, strconv.FormatFloat(v, 'g', 5, 64))
	}
	row["time/total_timesteps"] = float64(timesteps)
	r.current = make(map[string]float64)

	if r.verbose > 0 {
		level.Info(r.logger).Log(keyvals...)
	}
	if r.dir == "" {
		return nil
	}
	return util.AppendJSON(path.Join(r.dir, ProgressFile), row)
}

// History of a metric as (timesteps, value) points
func (r *RunLogger) History(key string) plotter.XYs {
	return r.history[key]
}

// Close plots the reward curves of the run
func (r *RunLogger) Close() error {
	if r.dir == "" {
		return nil
	}
	curves := make([]types.Curve, 0)
	for _, k := range []string{"rollout/ep_rew_mean", "eval/mean_reward"} {
		if pts, ok := r.history[k]; ok && len(pts) > 0 {
			curves = append(curves, types.Curve{Name: k, Points: pts})
		}
	}
	if len(curves) == 0 {
		return nil
	}
	return types.PlotCurves(path.Join(r.dir, CurveFile), path.Base(r.dir), "Timesteps", "Reward", curves...)
}
