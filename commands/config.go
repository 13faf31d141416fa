package commands

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeu5/hospitalbot-rl/training"
)

const EnvPrefix = "HOSPITALBOT"

// bindFlags makes every flag readable under its snake case key, for example
// --total-timesteps as total_timesteps in the config file and
// HOSPITALBOT_TOTAL_TIMESTEPS in the environment
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(f *pflag.Flag) {
		v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

// LoadConfig merges the defaults, the config file, the environment and the
// flags, in increasing order of precedence
func LoadConfig(v *viper.Viper) (training.Config, error) {
	config := training.DefaultConfig()
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config, errors.Wrapf(err, "reading config %s", file)
		}
	}
	if v.IsSet("env.obstacles") {
		config.Env.Obstacles = nil
	}
	if err := v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "decoding config")
	}
	if err := config.Validate(); err != nil {
		return config, errors.Wrap(err, "invalid config")
	}
	return config, nil
}
