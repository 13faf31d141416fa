package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeu5/hospitalbot-rl/training"
)

func GetRootCommand() *cobra.Command {
	return NewRootCommand(viper.New())
}

// NewRootCommand builds the command tree with every persistent flag bound into v
func NewRootCommand(v *viper.Viper) *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "hospitalbot-rl",
		Short:         "Train a hospital robot navigation policy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaults := training.DefaultConfig()
	flags := rootCommand.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("base-dir", defaults.BaseDir, "Root of the model, log and tuning directories")
	flags.Int("episodes", defaults.Episodes, "Episodes of the random agent")
	flags.String("algorithm", defaults.Algorithm, "Learning algorithm: PPO or A2C")
	flags.Int("total-timesteps", defaults.TotalTimesteps, "Timesteps of a training run")
	flags.Int("eval-freq", defaults.EvalFreq, "Steps between two evaluations, 0 disables them")
	flags.Int("eval-episodes", defaults.EvalEpisodes, "Episodes per evaluation")
	flags.Float64("reward-threshold", defaults.RewardThreshold, "Stop training once the best mean evaluation reward reaches it")
	flags.String("tb-log-name", defaults.TBLogName, "Name of the training run and of the saved model")
	flags.String("retrain-log-name", defaults.RetrainLogName, "Name of the retraining run and of the saved model")
	flags.String("retrain-model", defaults.RetrainModel, "Model loaded for retraining")
	flags.Int("trials", defaults.Trials, "Hyperparameter search trials")
	flags.Int("trial-timesteps", defaults.TrialTimesteps, "Timesteps of every search trial")
	flags.Int("trial-eval-episodes", defaults.TrialEvalEpisodes, "Evaluation episodes of every search trial")
	flags.String("study-name", defaults.StudyName, "Name of the search study, random when empty")
	flags.String("redis-addr", defaults.RedisAddr, "Redis server keeping the search study, in memory when empty")
	flags.String("monitor-addr", defaults.MonitorAddr, "Address of the HTTP status server, disabled when empty")
	flags.Uint64("seed", defaults.Seed, "Seed of the learner and of the search sampler")
	flags.Int("verbose", defaults.Verbose, "Log training progress when positive")
	bindFlags(v, flags)

	// adding the subcommands here
	rootCommand.AddCommand(ModeCommand(v, training.RandomAgent, "random-agent", "Step the environment with random actions"))
	rootCommand.AddCommand(ModeCommand(v, training.Training, "train", "Train a new model"))
	rootCommand.AddCommand(ModeCommand(v, training.Retraining, "retrain", "Continue training a saved model"))
	rootCommand.AddCommand(ModeCommand(v, training.HyperparamTuning, "tune", "Search the PPO hyperparameters"))
	rootCommand.AddCommand(RunCommand(v))
	return rootCommand
}
