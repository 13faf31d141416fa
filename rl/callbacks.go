package rl

import (
	"context"
	"fmt"
	"math"
	"path"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/types"
	"github.com/zeu5/hospitalbot-rl/util"
)

// Callback hooks into the training loop
type Callback interface {
	// Init is called at the start of every Learn call
	Init(model Model) error
	// OnStep is called after every environment step, returning false stops training
	OnStep(ctx context.Context) (bool, error)
	OnTrainingEnd()
}

// CallbackList runs callbacks in order, training stops as soon as one of them says so
type CallbackList []Callback

var _ Callback = CallbackList{}

func (c CallbackList) Init(model Model) error {
	for _, cb := range c {
		if err := cb.Init(model); err != nil {
			return err
		}
	}
	return nil
}

func (c CallbackList) OnStep(ctx context.Context) (bool, error) {
	cont := true
	for _, cb := range c {
		ok, err := cb.OnStep(ctx)
		if err != nil {
			return false, err
		}
		cont = cont && ok
	}
	return cont, nil
}

func (c CallbackList) OnTrainingEnd() {
	for _, cb := range c {
		cb.OnTrainingEnd()
	}
}

// NewBestHandler is notified by the EvalCallback when the best mean reward improves
type NewBestHandler interface {
	// OnNewBest returns false to stop training
	OnNewBest(bestMeanReward float64) bool
}

// StopTrainingOnRewardThreshold stops training once the best mean reward reaches the threshold
type StopTrainingOnRewardThreshold struct {
	RewardThreshold float64
	Logger          log.Logger
}

var _ NewBestHandler = &StopTrainingOnRewardThreshold{}

func NewStopTrainingOnRewardThreshold(threshold float64, logger log.Logger) *StopTrainingOnRewardThreshold {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &StopTrainingOnRewardThreshold{
		RewardThreshold: threshold,
		Logger:          logger,
	}
}

func (s *StopTrainingOnRewardThreshold) OnNewBest(bestMeanReward float64) bool {
	cont := bestMeanReward < s.RewardThreshold
	if !cont {
		level.Info(s.Logger).Log("msg", "stopping training", "best_mean_reward", fmt.Sprintf("%.2f", bestMeanReward), "threshold", s.RewardThreshold)
	}
	return cont
}

// EvalCallbackConfig configuration of the periodic evaluation
type EvalCallbackConfig struct {
	EvalEnv types.Environment
	// EvalFreq in calls to OnStep, 0 disables evaluation
	EvalFreq      int
	NEvalEpisodes int
	Deterministic bool
	// BestModelSavePath directory where best_model is written, empty disables saving
	BestModelSavePath string
	// LogPath directory where evaluations.jsonl is appended, empty disables it
	LogPath           string
	CallbackOnNewBest NewBestHandler
	Logger            log.Logger
}

// EvalCallback evaluates the model every EvalFreq steps and keeps the best one
type EvalCallback struct {
	config *EvalCallbackConfig
	model  Model
	logger log.Logger

	NCalls         int
	BestMeanReward float64
	LastMeanReward float64
	Evaluations    []Evaluation
}

// Evaluation is one evaluation round of the EvalCallback
type Evaluation struct {
	Timesteps  int     `json:"timesteps"`
	MeanReward float64 `json:"mean_reward"`
	StdReward  float64 `json:"std_reward"`
}

var _ Callback = &EvalCallback{}

func NewEvalCallback(config *EvalCallbackConfig) *EvalCallback {
	if config.NEvalEpisodes == 0 {
		config.NEvalEpisodes = 5
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &EvalCallback{
		config:         config,
		logger:         logger,
		BestMeanReward: math.Inf(-1),
		LastMeanReward: math.Inf(-1),
		Evaluations:    make([]Evaluation, 0),
	}
}

func (e *EvalCallback) Init(model Model) error {
	if e.config.EvalEnv == nil {
		return errors.New("eval callback needs an evaluation environment")
	}
	e.model = model
	if e.config.BestModelSavePath != "" {
		if err := util.EnsureDirs(e.config.BestModelSavePath); err != nil {
			return err
		}
	}
	return nil
}

func (e *EvalCallback) OnStep(ctx context.Context) (bool, error) {
	e.NCalls++
	if e.config.EvalFreq <= 0 || e.NCalls%e.config.EvalFreq != 0 {
		return true, nil
	}

	mean, std, err := EvaluatePolicy(ctx, e.model, e.config.EvalEnv, e.config.NEvalEpisodes, e.config.Deterministic)
	if err != nil {
		return false, err
	}
	e.LastMeanReward = mean
	eval := Evaluation{Timesteps: e.model.NumTimesteps(), MeanReward: mean, StdReward: std}
	e.Evaluations = append(e.Evaluations, eval)

	e.model.Recorder().Record("eval/mean_reward", mean)
	level.Info(e.logger).Log("msg", "eval", "num_timesteps", eval.Timesteps, "episode_reward", fmt.Sprintf("%.2f +/- %.2f", mean, std))
	if e.config.LogPath != "" {
		if err := util.AppendJSON(path.Join(e.config.LogPath, "evaluations.jsonl"), eval); err != nil {
			return false, err
		}
	}

	if mean <= e.BestMeanReward {
		return true, nil
	}
	level.Info(e.logger).Log("msg", "new best mean reward", "mean_reward", fmt.Sprintf("%.2f", mean))
	e.BestMeanReward = mean
	if e.config.BestModelSavePath != "" {
		if err := e.model.Save(path.Join(e.config.BestModelSavePath, "best_model")); err != nil {
			return false, errors.Wrap(err, "saving best model")
		}
	}
	if e.config.CallbackOnNewBest != nil {
		return e.config.CallbackOnNewBest.OnNewBest(mean), nil
	}
	return true, nil
}

func (e *EvalCallback) OnTrainingEnd() {}
