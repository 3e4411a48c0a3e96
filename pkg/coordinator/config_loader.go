package coordinator

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	customerrors "github.com/actual-software/llm-pacer/internal/errors"
	"github.com/actual-software/llm-pacer/internal/logging"
	"github.com/actual-software/llm-pacer/pkg/pacer"
)

const envPrefix = "LLM_PACER"

// ClassConfig is one caller class entry in a pacing configuration file:
// the controller configuration plus the advisory worker-pool size.
type ClassConfig struct {
	pacer.Config `mapstructure:",squash"`

	Workers int `mapstructure:"workers"`
}

// ClassesConfig is the root of a pacing configuration file.
type ClassesConfig struct {
	Classes map[string]ClassConfig `mapstructure:"classes"`
}

// LoadClassesConfig loads per-class pacing configuration from a YAML file.
// Unset fields fall back to the class defaults; environment variables with
// the LLM_PACER prefix override file values. Every class configuration is
// validated before the result is returned.
func LoadClassesConfig(configPath string) (*ClassesConfig, error) {
	v := viper.New()

	v.SetConfigFile(configPath)

	// Enable environment variable support
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, customerrors.NewIOError("error reading pacing config file", err).
			WithComponent("coordinator").
			WithContext("path", configPath)
	}

	var cfg ClassesConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, customerrors.Wrap(err, "error unmarshaling pacing config").
			WithComponent("coordinator")
	}

	for class, cc := range cfg.Classes {
		if cc.Class == "" {
			cc.Class = class
		}

		cc.Config = cc.Config.WithDefaults()
		if cc.Workers == 0 {
			cc.Workers = defaultWorkerCount
		}

		if err := cc.Validate(); err != nil {
			return nil, customerrors.Wrapf(err, "invalid configuration for class %q", class)
		}

		cfg.Classes[class] = cc
	}

	return &cfg, nil
}

// Apply registers every class from the loaded configuration and stores its
// worker count. Classes already registered cause an error.
func (c *Coordinator) Apply(cfg *ClassesConfig) error {
	if cfg == nil {
		return customerrors.NewValidationError("pacing config cannot be nil").
			WithComponent("coordinator")
	}

	for class, cc := range cfg.Classes {
		if err := c.RegisterClass(cc.Config); err != nil {
			wrapped := customerrors.Wrapf(err, "failed to register class %q", class)
			logging.LogError(c.logger, "pacing configuration rejected", wrapped,
				zap.String("class", class))

			return wrapped
		}

		c.SetWorkerCount(class, cc.Workers)
	}

	return nil
}
