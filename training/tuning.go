package training

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/policies"
	"github.com/zeu5/hospitalbot-rl/rl"
	"github.com/zeu5/hospitalbot-rl/search"
)

// FailedTrialValue is the objective value of a trial that could not be trained
const FailedTrialValue = -10000.0

const (
	BestParamsFile = "best_params.yaml"
	StudyFile      = "study.xlsx"
)

// SamplePPOParams draws the PPO hyperparameters searched by the tuning mode
func SamplePPOParams(trial *search.Trial) (map[string]float64, error) {
	params := make(map[string]float64, 7)
	nSteps, err := trial.SuggestInt("n_steps", 2048, 8192)
	if err != nil {
		return nil, err
	}
	params["n_steps"] = float64(nSteps)

	if params["gamma"], err = trial.SuggestLogUniform("gamma", 0.8, 0.9999); err != nil {
		return nil, err
	}
	if params["learning_rate"], err = trial.SuggestLogUniform("learning_rate", 1e-6, 1e-3); err != nil {
		return nil, err
	}
	if params["clip_range"], err = trial.SuggestUniform("clip_range", 0.1, 0.4); err != nil {
		return nil, err
	}
	if params["gae_lambda"], err = trial.SuggestUniform("gae_lambda", 0.8, 0.99); err != nil {
		return nil, err
	}
	if params["ent_coef"], err = trial.SuggestLogUniform("ent_coef", 1e-8, 0.1); err != nil {
		return nil, err
	}
	if params["vf_coef"], err = trial.SuggestUniform("vf_coef", 0, 1); err != nil {
		return nil, err
	}
	return params, nil
}

// TrialModelPath is where the model of the trial is saved
func (r *Runner) TrialModelPath(number int) string {
	return filepath.Join(r.config.TuningPath(), fmt.Sprintf("trial_%d_best_model", number))
}

// Objective trains a PPO model with sampled hyperparameters on a fresh
// environment and returns its mean evaluation reward. Any failure, panics
// included, scores FailedTrialValue with the reason kept as a user attribute
// of the trial. Only cancellation of ctx is returned as an error.
func (r *Runner) Objective(ctx context.Context, trial *search.Trial) (value float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			value, err = r.failTrial(trial, errors.Errorf("panic: %v", p))
		}
	}()
	mean, err := r.runTrial(ctx, trial)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return r.failTrial(trial, err)
	}
	return mean, nil
}

func (r *Runner) failTrial(trial *search.Trial, reason error) (float64, error) {
	level.Warn(r.logger).Log("msg", "trial failed", "trial", trial.Number(), "err", reason)
	if err := trial.SetUserAttr(search.UserAttrFailReason, reason.Error()); err != nil {
		level.Warn(r.logger).Log("msg", "failed to record trial failure", "trial", trial.Number(), "err", err)
	}
	return FailedTrialValue, nil
}

func (r *Runner) runTrial(ctx context.Context, trial *search.Trial) (float64, error) {
	env, err := r.makeEnv()
	if err != nil {
		return 0, err
	}
	closed := false
	defer func() {
		if !closed {
			env.Close()
		}
	}()

	params, err := SamplePPOParams(trial)
	if err != nil {
		return 0, err
	}
	model, err := policies.NewModel(policies.PPO, env, params, r.modelOptions(0))
	if err != nil {
		return 0, err
	}
	err = model.Learn(ctx, rl.LearnConfig{
		TotalTimesteps:    r.config.TrialTimesteps,
		ResetNumTimesteps: true,
	})
	if err != nil {
		return 0, err
	}
	mean, _, err := rl.EvaluatePolicy(ctx, model, env, r.config.TrialEvalEpisodes, true)
	if err != nil {
		return 0, err
	}
	closed = true
	if err := env.Close(); err != nil {
		return 0, err
	}
	if err := model.Save(r.TrialModelPath(trial.Number())); err != nil {
		return 0, err
	}
	return mean, nil
}

// Tune drops the environment built by Setup and searches the PPO
// hyperparameters over Trials sequential trials. The best parameters are
// written to best_params.yaml and every trial to study.xlsx in the tuning directory.
func (r *Runner) Tune(ctx context.Context) (*search.Study, error) {
	if err := r.env.Close(); err != nil {
		return nil, errors.Wrap(err, "closing environment")
	}
	r.env = nil

	study, err := search.CreateStudy(ctx, search.StudyConfig{
		Name:      r.config.StudyName,
		Direction: search.Maximize,
		Sampler:   search.NewRandomSampler(r.config.Seed),
		Storage:   r.storage,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, err
	}
	r.tracker.SetPhase("tuning")
	err = study.Optimize(ctx, r.Objective, r.config.Trials, func(_ *search.Study, trial search.FrozenTrial) {
		r.tracker.TrialFinished(trial)
	})
	if err != nil {
		return study, err
	}

	trials, err := study.Trials(ctx)
	if err != nil {
		return study, err
	}
	if err := search.ExportXLSX(trials, filepath.Join(r.config.TuningPath(), StudyFile)); err != nil {
		return study, err
	}
	best, err := study.BestTrial(ctx)
	if err != nil {
		return study, err
	}
	level.Info(r.logger).Log("msg", "best hyperparameters", "trial", best.Number, "value", best.Value, "params", fmt.Sprint(best.Params))
	if err := search.WriteParamsYAML(best.Params, filepath.Join(r.config.TuningPath(), BestParamsFile)); err != nil {
		return study, err
	}
	return study, nil
}
