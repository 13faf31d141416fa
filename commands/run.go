package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeu5/hospitalbot-rl/monitor"
	"github.com/zeu5/hospitalbot-rl/search"
	"github.com/zeu5/hospitalbot-rl/training"
	"github.com/zeu5/hospitalbot-rl/util"
	"gopkg.in/yaml.v3"
)

// ModeCommand runs a single mode
func ModeCommand(v *viper.Viper, mode training.Mode, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(v, mode)
		},
	}
}

// RunCommand runs the mode given by --mode
func RunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mode given by --mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := training.ParseMode(v.GetString("mode"))
			if err != nil {
				return err
			}
			return runMode(v, mode)
		},
	}
	modes := make([]string, 0)
	for _, m := range training.Modes() {
		modes = append(modes, string(m))
	}
	cmd.Flags().String("mode", string(training.HyperparamTuning), "One of "+strings.Join(modes, ", "))
	v.BindPFlag("mode", cmd.Flags().Lookup("mode"))
	return cmd
}

func runMode(v *viper.Viper, mode training.Mode) error {
	config, err := LoadConfig(v)
	if err != nil {
		return err
	}
	logger, err := NewLogger(os.Stderr, v.GetString("log_level"))
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	doneCh := make(chan struct{})
	defer close(doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sigCh:
			level.Warn(logger).Log("msg", "interrupted, stopping")
		case <-doneCh:
		}
		cancel()
	}()

	return Run(ctx, config, mode, logger)
}

// Run sets up the optional monitor and study storage, then the runner, and
// executes the mode
func Run(ctx context.Context, config training.Config, mode training.Mode, logger log.Logger) error {
	tracker := monitor.NewTracker(training.NodeName)
	if config.MonitorAddr != "" {
		server := monitor.NewServer(config.MonitorAddr, tracker, logger)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Shutdown()
	}

	opts := []training.Option{training.WithTracker(tracker)}
	if config.RedisAddr != "" {
		storage := search.NewRedisStorage(config.RedisAddr)
		defer storage.Close()
		if err := storage.Ping(ctx); err != nil {
			return err
		}
		opts = append(opts, training.WithStorage(storage))
	}

	runner, err := training.NewRunner(config, logger, opts...)
	if err != nil {
		return err
	}
	defer runner.Shutdown()
	if err := runner.Setup(); err != nil {
		return err
	}
	if err := writeConfig(config); err != nil {
		level.Warn(logger).Log("msg", "failed to write config", "err", err)
	}
	return runner.Run(ctx, mode)
}

// ConfigSnapshotFile holds the effective config of the last run under the logs directory
const ConfigSnapshotFile = "config.yaml"

// writeConfig keeps the effective config next to the run logs
func writeConfig(config training.Config) error {
	bs, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return util.WriteToFile(filepath.Join(config.LogPath(), ConfigSnapshotFile), string(bs))
}
