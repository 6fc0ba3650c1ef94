package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// Config carries the tunables for the contention engines. All fields are
// toml-loadable so a demo harness can ship a config file next to the binary.
type Config struct {
	LogLevel string `toml:"log-level"`

	// Maximum number of attempts running at once. Requested concurrency above
	// this queues for a free worker.
	MaxWorkers int `toml:"max-workers"`

	// Optimistic retry budget per attempt. A conflict after the budget is
	// spent marks the attempt failed.
	MaxRetries int `toml:"max-retries"`

	// Base unit for exponential backoff between optimistic retries. The n-th
	// retry sleeps BackoffBase * 2^(n-1) plus jitter up to half of that.
	BackoffBase time.Duration `toml:"backoff-base"`

	// Upper bound on a whole engine run. Attempts still outstanding when it
	// fires are recorded as timed-out failures.
	RunTimeout time.Duration `toml:"run-timeout"`
}

func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return errors.Errorf("max-workers must be positive, got %d", c.MaxWorkers)
	}
	if c.MaxRetries <= 0 {
		return errors.Errorf("max-retries must be positive, got %d", c.MaxRetries)
	}
	if c.BackoffBase <= 0 {
		return errors.Errorf("backoff-base must be positive, got %v", c.BackoffBase)
	}
	if c.RunTimeout <= 0 {
		return errors.Errorf("run-timeout must be positive, got %v", c.RunTimeout)
	}
	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:    getLogLevel(),
		MaxWorkers:  20,
		MaxRetries:  3,
		BackoffBase: 10 * time.Millisecond,
		RunTimeout:  10 * time.Second,
	}
}

// NewTestConfig keeps backoffs short so contention tests finish quickly.
func NewTestConfig() *Config {
	return &Config{
		LogLevel:    getLogLevel(),
		MaxWorkers:  20,
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		RunTimeout:  5 * time.Second,
	}
}

// FromFile loads a config from a toml file on top of the defaults.
func FromFile(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
