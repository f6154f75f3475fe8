// Package config loads the runtime configuration from config.yaml,
// a .env file and the environment, in that order of increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all tunables. Durations are carried as milliseconds or
// seconds in the file and converted through the accessor methods.
type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	// AccountsFile is the JSON credential store path.
	AccountsFile string `mapstructure:"accounts_file"`

	// Browser fleet.
	Headless   bool   `mapstructure:"headless"`
	GridCols   int    `mapstructure:"grid_cols"`
	CellWidth  int    `mapstructure:"cell_width"`
	CellHeight int    `mapstructure:"cell_height"`
	UserAgent  string `mapstructure:"user_agent"`

	// Login orchestration.
	LoginBatchSize   int `mapstructure:"login_batch_size"`
	LoginParallelism int `mapstructure:"login_parallelism"`
	LoginTimeoutSec  int `mapstructure:"login_timeout_sec"`

	// Booking flow.
	WaitTimeoutSec int     `mapstructure:"wait_timeout_sec"`
	SettleWindowMS int     `mapstructure:"settle_window_ms"`
	SettlePollMS   int     `mapstructure:"settle_poll_ms"`
	RetryBackoffMS int     `mapstructure:"retry_backoff_ms"`
	PassBackoffMS  int     `mapstructure:"pass_backoff_ms"`
	PickPercentile float64 `mapstructure:"pick_percentile"`

	// Challenge solving.
	CaptchaMaxAttempts int `mapstructure:"captcha_max_attempts"`
	CaptchaCodeLength  int `mapstructure:"captcha_code_length"`
	CaptchaThreshold   int `mapstructure:"captcha_threshold"`
}

// Load reads config.yaml from the working directory or ./config,
// overlays .env and the SEATRUSH_* environment, and fills defaults.
func Load() (Config, error) {
	// Environment entries from .env never override values already
	// exported by the shell.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("seatrush")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("accounts_file", "accounts.json")
	v.SetDefault("headless", false)
	v.SetDefault("grid_cols", 3)
	v.SetDefault("cell_width", 640)
	v.SetDefault("cell_height", 480)
	v.SetDefault("user_agent", "")
	v.SetDefault("login_batch_size", 5)
	v.SetDefault("login_parallelism", 3)
	v.SetDefault("login_timeout_sec", 30)
	v.SetDefault("wait_timeout_sec", 10)
	v.SetDefault("settle_window_ms", 500)
	v.SetDefault("settle_poll_ms", 100)
	v.SetDefault("retry_backoff_ms", 1000)
	v.SetDefault("pass_backoff_ms", 2000)
	v.SetDefault("pick_percentile", 0.08)
	v.SetDefault("captcha_max_attempts", 15)
	v.SetDefault("captcha_code_length", 6)
	v.SetDefault("captcha_threshold", 0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PickPercentile <= 0 || c.PickPercentile > 1 {
		return fmt.Errorf("config: pick_percentile %v outside (0, 1]", c.PickPercentile)
	}
	if c.SettlePollMS <= 0 || c.SettleWindowMS < c.SettlePollMS {
		return fmt.Errorf("config: settle window %dms must cover at least one %dms poll",
			c.SettleWindowMS, c.SettlePollMS)
	}
	if c.CaptchaMaxAttempts <= 0 {
		return fmt.Errorf("config: captcha_max_attempts must be positive")
	}
	if c.CaptchaCodeLength <= 0 {
		return fmt.Errorf("config: captcha_code_length must be positive")
	}
	if c.GridCols < 2 {
		return fmt.Errorf("config: grid_cols %d leaves no cell for sessions, need at least 2", c.GridCols)
	}
	return nil
}

// IsDevelopment reports whether the development log encoder applies.
func (c Config) IsDevelopment() bool { return c.Env != "production" }

func (c Config) LoginTimeout() time.Duration { return time.Duration(c.LoginTimeoutSec) * time.Second }
func (c Config) WaitTimeout() time.Duration  { return time.Duration(c.WaitTimeoutSec) * time.Second }
func (c Config) SettleWindow() time.Duration {
	return time.Duration(c.SettleWindowMS) * time.Millisecond
}
func (c Config) SettlePoll() time.Duration { return time.Duration(c.SettlePollMS) * time.Millisecond }
func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}
func (c Config) PassBackoff() time.Duration {
	return time.Duration(c.PassBackoffMS) * time.Millisecond
}
