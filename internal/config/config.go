// Package config loads autofold settings with viper from .autofold.yaml,
// AUTOFOLD_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/phobologic/autofold/internal/logging"
	"github.com/phobologic/autofold/internal/model"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// FileName is the config file name without extension.
const FileName = ".autofold"

// Config holds all runtime configuration.
type Config struct {
	AlwaysFold           []string       `mapstructure:"alwaysFold"`
	NeverFold            []string       `mapstructure:"neverFold"`
	CollapseLevel        int            `mapstructure:"collapseLevel"`
	EnableCollapsePragma bool           `mapstructure:"enableCollapsePragma"`
	Debounce             time.Duration  `mapstructure:"debounce"`
	SettleDelay          time.Duration  `mapstructure:"settleDelay"`
	FoldDelay            time.Duration  `mapstructure:"foldDelay"`
	TolerateSyntaxErrors bool           `mapstructure:"tolerateSyntaxErrors"`
	Log                  logging.Config `mapstructure:"log"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	rules := model.DefaultRules()
	v.SetDefault("alwaysFold", []string{})
	v.SetDefault("neverFold", rules.NeverFold)
	v.SetDefault("collapseLevel", rules.CollapseLevel)
	v.SetDefault("enableCollapsePragma", rules.PragmaEnabled)
	v.SetDefault("debounce", 500*time.Millisecond)
	v.SetDefault("settleDelay", 50*time.Millisecond)
	v.SetDefault("foldDelay", 10*time.Millisecond)
	v.SetDefault("tolerateSyntaxErrors", false)

	log := logging.DefaultConfig()
	v.SetDefault("log.level", log.Level)
	v.SetDefault("log.format", log.Format)
}

// New returns a viper instance with defaults and environment binding. It
// reads configFile when given, else .autofold.yaml from the working
// directory or the home directory. A missing default file is not an error.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("AUTOFOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.CollapseLevel < 0 {
		return fmt.Errorf("%w: collapseLevel must be >= 0, got %d", ErrInvalid, c.CollapseLevel)
	}
	for name, d := range map[string]time.Duration{
		"debounce":    c.Debounce,
		"settleDelay": c.SettleDelay,
		"foldDelay":   c.FoldDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalid, name, d)
		}
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: log: %v", ErrInvalid, err)
	}
	return nil
}

// Rules returns the folding rules of c.
func (c Config) Rules() model.Rules {
	patterns := make([]model.Pattern, 0, len(c.AlwaysFold))
	for _, p := range c.AlwaysFold {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, model.Pattern(p))
		}
	}
	return model.Rules{
		AlwaysFold:    patterns,
		NeverFold:     append([]string(nil), c.NeverFold...),
		CollapseLevel: c.CollapseLevel,
		PragmaEnabled: c.EnableCollapsePragma,
	}
}

// Source serves the most recent valid rules of a viper instance.
type Source struct {
	v      *viper.Viper
	logger *zap.Logger

	mu    sync.RWMutex
	rules model.Rules
}

// NewSource loads the rules held by v. It fails when they are invalid.
func NewSource(v *viper.Viper, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}
	return &Source{v: v, logger: logger, rules: cfg.Rules()}, nil
}

// Rules returns the current rules snapshot.
func (s *Source) Rules() model.Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Reload re-reads the rules from viper. An invalid configuration is logged
// and the previous rules stay in effect.
func (s *Source) Reload() error {
	cfg, err := Load(s.v)
	if err != nil {
		s.logger.Warn("invalid configuration, keeping previous rules", zap.Error(err))
		return err
	}
	rules := cfg.Rules()

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	s.logger.Info("configuration reloaded",
		zap.Int("always_fold", len(rules.AlwaysFold)),
		zap.Strings("never_fold", rules.NeverFold),
		zap.Int("collapse_level", rules.CollapseLevel),
		zap.Bool("pragma_enabled", rules.PragmaEnabled),
	)
	return nil
}

// Watch reloads the rules whenever the config file changes on disk.
func (s *Source) Watch() {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Debug("config file changed", zap.String("file", e.Name), zap.Stringer("op", e.Op))
		_ = s.Reload()
	})
	s.v.WatchConfig()
}
