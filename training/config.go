package training

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/hospitalbot"
	"github.com/zeu5/hospitalbot-rl/policies"
)

// Mode selects what a run does
type Mode string

const (
	RandomAgent      Mode = "random_agent"
	Training         Mode = "training"
	Retraining       Mode = "retraining"
	HyperparamTuning Mode = "hyperparam_tuning"
)

var ErrUnknownMode = errors.New("unknown run mode")

func Modes() []Mode {
	return []Mode{RandomAgent, Training, Retraining, HyperparamTuning}
}

// ParseMode accepts the mode names with either underscores or dashes
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, mode := range Modes() {
		if m == mode {
			return mode, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q", s)
}

// Config of a training run. Relative directories are resolved against BaseDir.
type Config struct {
	BaseDir   string `mapstructure:"base_dir" yaml:"base_dir"`
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir"`
	LogDir    string `mapstructure:"log_dir" yaml:"log_dir"`
	TuningDir string `mapstructure:"tuning_dir" yaml:"tuning_dir"`

	// random agent
	Episodes int `mapstructure:"episodes" yaml:"episodes"`

	// training and retraining
	Algorithm       string  `mapstructure:"algorithm" yaml:"algorithm"`
	TotalTimesteps  int     `mapstructure:"total_timesteps" yaml:"total_timesteps"`
	EvalFreq        int     `mapstructure:"eval_freq" yaml:"eval_freq"`
	EvalEpisodes    int     `mapstructure:"eval_episodes" yaml:"eval_episodes"`
	RewardThreshold float64 `mapstructure:"reward_threshold" yaml:"reward_threshold"`
	TBLogName       string  `mapstructure:"tb_log_name" yaml:"tb_log_name"`
	RetrainLogName  string  `mapstructure:"retrain_log_name" yaml:"retrain_log_name"`
	RetrainModel    string  `mapstructure:"retrain_model" yaml:"retrain_model"`

	// hyperparameter tuning
	Trials            int    `mapstructure:"trials" yaml:"trials"`
	TrialTimesteps    int    `mapstructure:"trial_timesteps" yaml:"trial_timesteps"`
	TrialEvalEpisodes int    `mapstructure:"trial_eval_episodes" yaml:"trial_eval_episodes"`
	StudyName         string `mapstructure:"study_name" yaml:"study_name"`
	RedisAddr         string `mapstructure:"redis_addr" yaml:"redis_addr"`

	Seed        uint64 `mapstructure:"seed" yaml:"seed"`
	Verbose     int    `mapstructure:"verbose" yaml:"verbose"`
	MonitorAddr string `mapstructure:"monitor_addr" yaml:"monitor_addr"`

	Env hospitalbot.Config `mapstructure:"env" yaml:"env"`
}

func DefaultConfig() Config {
	return Config{
		BaseDir:           ".",
		ModelsDir:         "rl_models",
		LogDir:            "logs",
		TuningDir:         "tuning",
		Episodes:          10,
		Algorithm:         string(policies.PPO),
		TotalTimesteps:    2000000,
		EvalFreq:          50000,
		EvalEpisodes:      5,
		RewardThreshold:   900,
		TBLogName:         "PPO_100TS_adaptive_rand_targ",
		RetrainLogName:    "PPO_100TS_retrain_adaptive_rand_targ",
		RetrainModel:      filepath.Join("rl_models", "best_model"),
		Trials:            10,
		TrialTimesteps:    100000,
		TrialEvalEpisodes: 20,
		Verbose:           1,
		Env:               hospitalbot.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if c.ModelsDir == "" || c.LogDir == "" || c.TuningDir == "" {
		return errors.New("models, log and tuning directories must be set")
	}
	if _, err := policies.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	switch {
	case c.Episodes <= 0:
		return errors.Errorf("episodes must be positive, got %d", c.Episodes)
	case c.TotalTimesteps <= 0:
		return errors.Errorf("total timesteps must be positive, got %d", c.TotalTimesteps)
	case c.EvalFreq < 0:
		return errors.Errorf("eval frequency cannot be negative, got %d", c.EvalFreq)
	case c.EvalEpisodes <= 0:
		return errors.Errorf("eval episodes must be positive, got %d", c.EvalEpisodes)
	case c.Trials <= 0:
		return errors.Errorf("trials must be positive, got %d", c.Trials)
	case c.TrialTimesteps <= 0:
		return errors.Errorf("trial timesteps must be positive, got %d", c.TrialTimesteps)
	case c.TrialEvalEpisodes <= 0:
		return errors.Errorf("trial eval episodes must be positive, got %d", c.TrialEvalEpisodes)
	case c.TBLogName == "" || c.RetrainLogName == "":
		return errors.New("log names cannot be empty")
	}
	return c.Env.Validate()
}

// Path resolves p against the base directory
func (c Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

func (c Config) ModelsPath() string { return c.Path(c.ModelsDir) }
func (c Config) LogPath() string    { return c.Path(c.LogDir) }
func (c Config) TuningPath() string { return c.Path(c.TuningDir) }
