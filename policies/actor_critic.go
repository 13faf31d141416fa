package policies

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/rl"
	"github.com/zeu5/hospitalbot-rl/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	minLogStd = -5.0
	maxLogStd = 2.0
	// episodes averaged in rollout/ep_rew_mean
	episodeWindow = 100
)

var log2Pi = math.Log(2 * math.Pi)

// Options that are not hyperparameters
type Options struct {
	Logger  log.Logger
	Verbose int
	// TensorboardLog is the directory of the run logs, empty disables them
	TensorboardLog string
	Seed           uint64
}

// layout of the flat parameter vector:
// policy weights (actDim x obsDim), policy bias, log std, value weights, value bias
type layout struct {
	obsDim int
	actDim int
}

func (l layout) size() int        { return l.actDim*l.obsDim + 2*l.actDim + l.obsDim + 1 }
func (l layout) w(j, i int) int   { return j*l.obsDim + i }
func (l layout) b(j int) int      { return l.actDim*l.obsDim + j }
func (l layout) logStd(j int) int { return l.actDim*l.obsDim + l.actDim + j }
func (l layout) vw(i int) int     { return l.actDim*l.obsDim + 2*l.actDim + i }
func (l layout) vb() int          { return l.size() - 1 }

// ActorCritic is a linear Gaussian policy with a linear value function,
// trained on-policy with GAE advantages. With a clip range it optimizes the
// PPO clipped surrogate, without one the plain advantage actor-critic loss.
type ActorCritic struct {
	algo    Algorithm
	params  Params
	options Options
	logger  log.Logger

	env      types.Environment
	obsSpace *types.DictSpace
	actSpace *types.Box
	layout   layout

	theta        []float64
	optimizer    *adam
	numTimesteps int
	src          rand.Source
	rng          *rand.Rand

	recorder       rl.Recorder
	episodeRewards []float64
	episodeLengths []float64
}

var _ rl.Model = &ActorCritic{}

// New creates an untrained model bound to env
func New(algo Algorithm, env types.Environment, params Params, options Options) (*ActorCritic, error) {
	if algo != PPO && algo != A2C {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", string(algo))
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if env == nil {
		return nil, errors.New("model needs an environment")
	}
	if options.Logger == nil {
		options.Logger = log.NewNopLogger()
	}

	obsSpace := env.ObservationSpace()
	actSpace := env.ActionSpace()
	l := layout{obsDim: obsSpace.Dims(), actDim: actSpace.Dims()}
	src := rand.NewSource(options.Seed)

	m := &ActorCritic{
		algo:           algo,
		params:         params,
		options:        options,
		logger:         log.With(options.Logger, "algo", string(algo)),
		env:            env,
		obsSpace:       obsSpace,
		actSpace:       actSpace,
		layout:         l,
		theta:          make([]float64, l.size()),
		optimizer:      newAdam(l.size()),
		src:            src,
		rng:            rand.New(src),
		recorder:       rl.NopRecorder(),
		episodeRewards: make([]float64, 0, episodeWindow),
		episodeLengths: make([]float64, 0, episodeWindow),
	}
	for j := 0; j < l.actDim; j++ {
		m.theta[l.logStd(j)] = params.LogStdInit
	}
	return m, nil
}

func (m *ActorCritic) Algorithm() Algorithm      { return m.algo }
func (m *ActorCritic) Params() Params            { return m.params }
func (m *ActorCritic) NumTimesteps() int         { return m.numTimesteps }
func (m *ActorCritic) Env() types.Environment    { return m.env }
func (m *ActorCritic) Recorder() rl.Recorder     { return m.recorder }
func (m *ActorCritic) EpisodeRewards() []float64 { return m.episodeRewards }

// features flattens the observation and scales each bounded component to [-1, 1]
func (m *ActorCritic) features(obs types.Observation) ([]float64, error) {
	x := make([]float64, 0, m.layout.obsDim)
	for _, k := range m.obsSpace.Keys() {
		box := m.obsSpace.Spaces[k]
		v, ok := obs[k]
		if !ok || len(v) != box.Dims() {
			return nil, errors.Errorf("observation component %q does not match the observation space", k)
		}
		for i, val := range v {
			low, high := box.Low[i], box.High[i]
			if high > low && !math.IsInf(high-low, 0) {
				val = 2*(val-low)/(high-low) - 1
			}
			x = append(x, val)
		}
	}
	return x, nil
}

func (m *ActorCritic) mean(x []float64) []float64 {
	l := m.layout
	mu := make([]float64, l.actDim)
	for j := 0; j < l.actDim; j++ {
		mu[j] = m.theta[l.b(j)] + floats.Dot(m.theta[l.w(j, 0):l.w(j, 0)+l.obsDim], x)
	}
	return mu
}

func (m *ActorCritic) value(x []float64) float64 {
	l := m.layout
	return m.theta[l.vb()] + floats.Dot(m.theta[l.vw(0):l.vw(0)+l.obsDim], x)
}

func (m *ActorCritic) logProb(a, mu []float64) float64 {
	lp := 0.0
	for j := range a {
		logStd := m.theta[m.layout.logStd(j)]
		z := (a[j] - mu[j]) / math.Exp(logStd)
		lp += -0.5*z*z - logStd - 0.5*log2Pi
	}
	return lp
}

func (m *ActorCritic) sample(mu []float64) []float64 {
	a := make([]float64, len(mu))
	for j := range mu {
		sigma := math.Exp(m.theta[m.layout.logStd(j)])
		a[j] = distuv.Normal{Mu: mu[j], Sigma: sigma, Src: m.src}.Rand()
	}
	return a
}

// Predict returns the action for obs, the mean action when deterministic
func (m *ActorCritic) Predict(obs types.Observation, deterministic bool) (types.Action, error) {
	x, err := m.features(obs)
	if err != nil {
		return nil, err
	}
	mu := m.mean(x)
	if deterministic {
		return m.actSpace.Clip(mu), nil
	}
	return m.actSpace.Clip(m.sample(mu)), nil
}

// Learn trains the model for TotalTimesteps more environment steps, or until
// the callback stops it
func (m *ActorCritic) Learn(ctx context.Context, config rl.LearnConfig) error {
	if config.TotalTimesteps <= 0 {
		return errors.Errorf("total timesteps must be positive, got %d", config.TotalTimesteps)
	}
	if config.ResetNumTimesteps {
		m.numTimesteps = 0
	}
	target := m.numTimesteps + config.TotalTimesteps

	name := config.TBLogName
	if name == "" {
		name = string(m.algo)
	}
	runLogger, err := rl.NewRunLogger(m.options.TensorboardLog, name, config.ResetNumTimesteps, m.logger, m.options.Verbose)
	if err != nil {
		return errors.Wrap(err, "opening run log")
	}
	m.recorder = runLogger
	defer func() {
		if err := runLogger.Close(); err != nil {
			level.Warn(m.logger).Log("msg", "failed to plot learning curve", "err", err)
		}
		m.recorder = rl.NopRecorder()
	}()

	var callback rl.Callback = rl.CallbackList{}
	if config.Callback != nil {
		callback = config.Callback
	}
	if err := callback.Init(m); err != nil {
		return err
	}
	defer callback.OnTrainingEnd()

	obs, err := m.env.Reset()
	if err != nil {
		return errors.Wrap(err, "resetting environment")
	}
	x, err := m.features(obs)
	if err != nil {
		return err
	}

	start := time.Now()
	startTimesteps := m.numTimesteps
	episodeReward, episodeLength := 0.0, 0
	iteration := 0

	for m.numTimesteps < target {
		buf := newRollout(m.params.NSteps)
		cont := true
		for buf.len() < m.params.NSteps && cont {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			mu := m.mean(x)
			a := m.sample(mu)
			logProb := m.logProb(a, mu)
			value := m.value(x)

			tr, err := m.env.Step(m.actSpace.Clip(a))
			if err != nil {
				return errors.Wrap(err, "stepping environment")
			}
			m.numTimesteps++
			episodeReward += tr.Reward
			episodeLength++
			buf.add(x, a, logProb, value, tr.Reward, tr.Done)

			next := tr.Observation
			if tr.Done {
				m.recordEpisode(episodeReward, episodeLength)
				episodeReward, episodeLength = 0, 0
				if next, err = m.env.Reset(); err != nil {
					return errors.Wrap(err, "resetting environment")
				}
			}
			if x, err = m.features(next); err != nil {
				return err
			}

			if cont, err = callback.OnStep(ctx); err != nil {
				return err
			}
		}
		if !cont {
			level.Info(m.logger).Log("msg", "training stopped by callback", "num_timesteps", m.numTimesteps)
			// metrics recorded by the stopping callback are still pending
			if err := runLogger.Dump(m.numTimesteps); err != nil {
				return errors.Wrap(err, "writing run log")
			}
			break
		}

		buf.computeGAE(m.value(x), m.params.Gamma, m.params.GAELambda)
		m.train(buf)
		iteration++

		elapsed := time.Since(start).Seconds()
		if elapsed > 0 {
			m.recorder.Record("time/fps", float64(m.numTimesteps-startTimesteps)/elapsed)
		}
		m.recorder.Record("time/iterations", float64(iteration))
		if len(m.episodeRewards) > 0 {
			m.recorder.Record("rollout/ep_rew_mean", stat.Mean(m.episodeRewards, nil))
			m.recorder.Record("rollout/ep_len_mean", stat.Mean(m.episodeLengths, nil))
		}
		if err := runLogger.Dump(m.numTimesteps); err != nil {
			return errors.Wrap(err, "writing run log")
		}
	}
	return nil
}

func (m *ActorCritic) recordEpisode(reward float64, length int) {
	if len(m.episodeRewards) == episodeWindow {
		m.episodeRewards = m.episodeRewards[1:]
		m.episodeLengths = m.episodeLengths[1:]
	}
	m.episodeRewards = append(m.episodeRewards, reward)
	m.episodeLengths = append(m.episodeLengths, float64(length))
}

type trainStats struct {
	pgLoss, valueLoss, entropyLoss, clipFraction float64
	batches, samples                             int
}

// train runs NEpochs passes of minibatch updates over the rollout
func (m *ActorCritic) train(buf *rollout) {
	n := buf.len()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	stats := &trainStats{}
	for epoch := 0; epoch < m.params.NEpochs; epoch++ {
		m.rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		for start := 0; start < n; start += m.params.BatchSize {
			end := start + m.params.BatchSize
			if end > n {
				end = n
			}
			m.trainBatch(buf, indices[start:end], stats)
		}
	}

	batches := float64(stats.batches)
	m.recorder.Record("train/policy_gradient_loss", stats.pgLoss/batches)
	m.recorder.Record("train/value_loss", stats.valueLoss/batches)
	m.recorder.Record("train/entropy_loss", stats.entropyLoss/batches)
	m.recorder.Record("train/loss", (stats.pgLoss+m.params.EntCoef*stats.entropyLoss+m.params.VFCoef*stats.valueLoss)/batches)
	m.recorder.Record("train/learning_rate", m.params.LearningRate)
	if m.params.ClipRange > 0 {
		m.recorder.Record("train/clip_fraction", stats.clipFraction/float64(stats.samples))
	}
	std := 0.0
	for j := 0; j < m.layout.actDim; j++ {
		std += math.Exp(m.theta[m.layout.logStd(j)])
	}
	m.recorder.Record("train/std", std/float64(m.layout.actDim))
}

func (m *ActorCritic) trainBatch(buf *rollout, batch []int, stats *trainStats) {
	l := m.layout
	size := float64(len(batch))
	grad := make([]float64, l.size())

	advantages := make([]float64, len(batch))
	for k, i := range batch {
		advantages[k] = buf.advantages[i]
	}
	if m.params.NormalizeAdv && len(batch) > 1 {
		mean, std := stat.MeanStdDev(advantages, nil)
		for k := range advantages {
			advantages[k] = (advantages[k] - mean) / (std + 1e-8)
		}
	}

	clip := m.params.ClipRange
	pgLoss, valueLoss := 0.0, 0.0
	for k, i := range batch {
		x, a := buf.features[i], buf.actions[i]
		adv := advantages[k]
		mu := m.mean(x)

		// derivative of the policy loss with respect to log pi(a|x)
		var dLogProb float64
		if clip > 0 {
			ratio := math.Exp(m.logProb(a, mu) - buf.logProbs[i])
			surr1 := ratio * adv
			surr2 := math.Max(1-clip, math.Min(1+clip, ratio)) * adv
			pgLoss += -math.Min(surr1, surr2)
			if surr1 <= surr2 {
				dLogProb = -ratio * adv
			}
			if math.Abs(ratio-1) > clip {
				stats.clipFraction++
			}
		} else {
			pgLoss += -adv * m.logProb(a, mu)
			dLogProb = -adv
		}

		for j := 0; j < l.actDim; j++ {
			variance := math.Exp(2 * m.theta[l.logStd(j)])
			diff := a[j] - mu[j]
			dMu := dLogProb * diff / variance
			grad[l.b(j)] += dMu
			floats.AddScaled(grad[l.w(j, 0):l.w(j, 0)+l.obsDim], dMu, x)
			grad[l.logStd(j)] += dLogProb*(diff*diff/variance-1) - m.params.EntCoef
		}

		v := m.value(x)
		ret := buf.returns[i]
		valueLoss += (ret - v) * (ret - v)
		dV := m.params.VFCoef * 2 * (v - ret)
		grad[l.vb()] += dV
		floats.AddScaled(grad[l.vw(0):l.vw(0)+l.obsDim], dV, x)
	}
	floats.Scale(1/size, grad)

	if m.params.MaxGradNorm > 0 {
		if norm := floats.Norm(grad, 2); norm > m.params.MaxGradNorm {
			floats.Scale(m.params.MaxGradNorm/norm, grad)
		}
	}
	m.optimizer.step(m.theta, grad, m.params.LearningRate)
	for j := 0; j < l.actDim; j++ {
		idx := l.logStd(j)
		m.theta[idx] = math.Max(minLogStd, math.Min(maxLogStd, m.theta[idx]))
	}

	entropy := 0.0
	for j := 0; j < l.actDim; j++ {
		entropy += m.theta[l.logStd(j)] + 0.5*(log2Pi+1)
	}
	stats.pgLoss += pgLoss / size
	stats.valueLoss += valueLoss / size
	stats.entropyLoss += -entropy
	stats.batches++
	stats.samples += len(batch)
}

func (m *ActorCritic) String() string {
	return fmt.Sprintf("%s(obs=%d, act=%d, timesteps=%d)", m.algo, m.layout.obsDim, m.layout.actDim, m.numTimesteps)
}
