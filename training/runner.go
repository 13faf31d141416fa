// Package training bootstraps the hospital robot environment and runs one of
// the run modes: random agent, training, retraining or hyperparameter tuning.
package training

import (
	"context"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/hospitalbot"
	"github.com/zeu5/hospitalbot-rl/monitor"
	"github.com/zeu5/hospitalbot-rl/policies"
	"github.com/zeu5/hospitalbot-rl/rl"
	"github.com/zeu5/hospitalbot-rl/search"
	"github.com/zeu5/hospitalbot-rl/types"
	"github.com/zeu5/hospitalbot-rl/util"
)

const NodeName = "hospitalbot_training"

// Option customizes a Runner
type Option func(*Runner)

// WithEnvConstructor replaces the hospital robot environment registered under hospitalbot.EnvID
func WithEnvConstructor(c types.EnvConstructor) Option {
	return func(r *Runner) { r.entryPoint = c }
}

// WithRegistry registers the environment in an existing registry
func WithRegistry(registry *types.Registry) Option {
	return func(r *Runner) { r.registry = registry }
}

// WithStorage keeps the tuning study in storage instead of memory
func WithStorage(storage search.Storage) Option {
	return func(r *Runner) { r.storage = storage }
}

// WithTracker reports progress to the monitor
func WithTracker(tracker *monitor.Tracker) Option {
	return func(r *Runner) { r.tracker = tracker }
}

// Runner owns the environment and the callbacks of a run
type Runner struct {
	config     Config
	logger     log.Logger
	registry   *types.Registry
	entryPoint types.EnvConstructor
	storage    search.Storage
	tracker    *monitor.Tracker

	env          types.Environment
	evalEnv      types.Environment
	evalCallback *rl.EvalCallback
	callbacks    rl.CallbackList
}

func NewRunner(config Config, logger log.Logger, opts ...Option) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &Runner{
		config:   config,
		logger:   logger,
		registry: types.NewRegistry(types.ConflictReject),
	}
	for _, o := range opts {
		o(r)
	}
	if r.entryPoint == nil {
		r.entryPoint = hospitalbot.Constructor(config.Env)
	}
	level.Info(r.logger).Log("msg", "training node has been created", "node", NodeName)
	r.tracker.SetPhase("created")
	return r, nil
}

// EnsureDirs creates the model and log directories, existing ones are kept
func (r *Runner) EnsureDirs() error {
	return util.EnsureDirs(r.config.ModelsPath(), r.config.LogPath())
}

// Setup prepares the directories and the environment: the environment is
// registered, made, wrapped in reward normalization and checked. The
// evaluation callbacks are built on a separate unnormalized instance.
func (r *Runner) Setup() error {
	if err := r.EnsureDirs(); err != nil {
		return err
	}
	if err := hospitalbot.Register(r.registry, r.entryPoint); err != nil {
		return errors.Wrap(err, "registering environment")
	}
	level.Info(r.logger).Log("msg", "the environment has been registered", "env", hospitalbot.EnvID)

	env, err := r.makeEnv()
	if err != nil {
		return err
	}
	r.env = env
	if err := types.CheckEnv(r.env, r.logger); err != nil {
		return err
	}
	level.Info(r.logger).Log("msg", "environment check finished")

	evalEnv, err := r.registry.Make(hospitalbot.EnvID)
	if err != nil {
		return errors.Wrap(err, "making evaluation environment")
	}
	r.evalEnv = evalEnv
	r.evalCallback = rl.NewEvalCallback(&rl.EvalCallbackConfig{
		EvalEnv:           r.evalEnv,
		EvalFreq:          r.config.EvalFreq,
		NEvalEpisodes:     r.config.EvalEpisodes,
		Deterministic:     true,
		BestModelSavePath: r.config.ModelsPath(),
		LogPath:           r.config.LogPath(),
		CallbackOnNewBest: rl.NewStopTrainingOnRewardThreshold(r.config.RewardThreshold, r.logger),
		Logger:            r.logger,
	})
	r.callbacks = rl.CallbackList{r.evalCallback, &progressCallback{tracker: r.tracker, eval: r.evalCallback}}
	r.tracker.SetPhase("ready")
	return nil
}

// makeEnv builds a reward normalized instance of the registered environment
func (r *Runner) makeEnv() (types.Environment, error) {
	env, err := r.registry.Make(hospitalbot.EnvID)
	if err != nil {
		return nil, errors.Wrap(err, "making environment")
	}
	return types.NewNormalizeReward(env), nil
}

// Run executes the run mode, Setup must have been called
func (r *Runner) Run(ctx context.Context, mode Mode) error {
	if r.env == nil {
		return errors.New("runner is not set up")
	}
	r.tracker.SetMode(string(mode))
	r.tracker.SetPhase("running")
	var err error
	switch mode {
	case RandomAgent:
		level.Info(r.logger).Log("msg", "starting the random agent", "episodes", r.config.Episodes)
		_, err = r.RandomAgent(ctx)
	case Training:
		err = r.Train(ctx)
	case Retraining:
		err = r.Retrain(ctx)
	case HyperparamTuning:
		_, err = r.Tune(ctx)
	default:
		err = errors.Wrapf(ErrUnknownMode, "%q", string(mode))
	}
	if err != nil {
		r.tracker.SetPhase("failed")
		return err
	}
	r.tracker.SetPhase("finished")
	return nil
}

// Shutdown closes the environments
func (r *Runner) Shutdown() error {
	var err error
	for _, env := range []types.Environment{r.env, r.evalEnv} {
		if env == nil {
			continue
		}
		if cerr := env.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	r.env, r.evalEnv = nil, nil
	level.Info(r.logger).Log("msg", "the training is finished, now the node is destroyed")
	return err
}

// RandomAgent steps the environment with uniformly sampled actions and plots
// the episode rewards to logs/random_agent.png
func (r *Runner) RandomAgent(ctx context.Context) ([]*types.Trace, error) {
	agent := types.NewAgent(&types.AgentConfig{
		Episodes:    r.config.Episodes,
		Policy:      types.NewRandomPolicy(r.env.ActionSpace()),
		Environment: r.env,
		Logger:      r.logger,
		LogKey:      hospitalbot.AgentKey,
	})
	traces, err := agent.Run(ctx)
	if err != nil {
		return traces, err
	}
	curve := types.EpisodeRewardCurve("random agent", traces)
	if err := types.PlotCurves(filepath.Join(r.config.LogPath(), "random_agent.png"), "Random agent", "Episode", "Reward", curve); err != nil {
		level.Warn(r.logger).Log("msg", "failed to plot episode rewards", "err", err)
	}
	return traces, nil
}

func (r *Runner) modelOptions(verbose int) policies.Options {
	return policies.Options{
		Logger:         r.logger,
		Verbose:        verbose,
		TensorboardLog: r.config.LogPath(),
		Seed:           r.config.Seed,
	}
}

// Train learns a fresh model and saves it under the models directory as TBLogName
func (r *Runner) Train(ctx context.Context) error {
	algo, err := policies.ParseAlgorithm(r.config.Algorithm)
	if err != nil {
		return err
	}
	model, err := policies.NewModel(algo, r.env, nil, r.modelOptions(r.config.Verbose))
	if err != nil {
		return errors.Wrap(err, "creating model")
	}
	return r.learnAndSave(ctx, model, r.config.TBLogName)
}

// Retrain continues learning from the saved RetrainModel
func (r *Runner) Retrain(ctx context.Context) error {
	level.Info(r.logger).Log("msg", "retraining an existent model", "model", r.config.RetrainModel)
	model, err := policies.Load(r.config.Path(r.config.RetrainModel), r.env, r.modelOptions(r.config.Verbose))
	if err != nil {
		return errors.Wrap(err, "loading model")
	}
	return r.learnAndSave(ctx, model, r.config.RetrainLogName)
}

func (r *Runner) learnAndSave(ctx context.Context, model rl.Model, name string) error {
	r.tracker.SetPhase("learning")
	err := model.Learn(ctx, rl.LearnConfig{
		TotalTimesteps:    r.config.TotalTimesteps,
		Callback:          r.callbacks,
		ResetNumTimesteps: false,
		TBLogName:         name,
	})
	if err != nil {
		return errors.Wrap(err, "learning")
	}
	savePath := filepath.Join(r.config.ModelsPath(), name)
	if err := model.Save(savePath); err != nil {
		return errors.Wrap(err, "saving model")
	}
	level.Info(r.logger).Log("msg", "model saved", "path", policies.ModelPath(savePath), "num_timesteps", model.NumTimesteps())
	return nil
}

// EvalCallback of the run, nil before Setup
func (r *Runner) EvalCallback() *rl.EvalCallback {
	return r.evalCallback
}
