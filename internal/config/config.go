// Package config provides runtime configuration values for the service.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrInvalidConfig = errors.New("invalid config")
)

var dotenvLoaded sync.Once

// Config holds configuration knobs for the HTTP server, logging, the journal
// workers and the machine registry.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	InitialWorkerCount      int           `env:"WORKER_COUNT" envDefault:"3"`
	WorkerMin               int           `env:"WORKER_MIN" envDefault:"3"`
	WorkerMax               int           `env:"WORKER_MAX" envDefault:"8"`
	ScaleInterval           time.Duration `env:"SCALE_INTERVAL" envDefault:"500ms"`
	ScaleUpBacklogPerWorker int           `env:"SCALE_UP_BACKLOG_PER_WORKER" envDefault:"100"`
	ScaleDownIdleTicks      int           `env:"SCALE_DOWN_IDLE_TICKS" envDefault:"6"`
	QueueHighWatermark      int           `env:"QUEUE_HIGH_WATERMARK" envDefault:"5000"`

	JournalLimit int `env:"JOURNAL_LIMIT" envDefault:"256"`
	MaxMachines  int `env:"MAX_MACHINES" envDefault:"1024"`
}

// Load reads an optional .env file once, then parses the environment into a
// Config and validates it.
func Load() (Config, error) {
	dotenvLoaded.Do(func() {
		// the .env file is optional
		_ = godotenv.Load()
	})
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// MustLoad works like Load but panics on error.
func MustLoad() Config {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return c
}

// Validate checks bounds and clamps the initial worker count into
// [WorkerMin, WorkerMax].
func (c *Config) Validate() error {
	if c.WorkerMin < 1 {
		return fmt.Errorf("%w: WORKER_MIN must be >= 1, got %d", ErrInvalidConfig, c.WorkerMin)
	}
	if c.WorkerMax < c.WorkerMin {
		return fmt.Errorf("%w: WORKER_MAX (%d) must be >= WORKER_MIN (%d)", ErrInvalidConfig, c.WorkerMax, c.WorkerMin)
	}
	if c.ScaleInterval <= 0 {
		return fmt.Errorf("%w: SCALE_INTERVAL must be positive", ErrInvalidConfig)
	}
	if c.JournalLimit < 1 {
		return fmt.Errorf("%w: JOURNAL_LIMIT must be >= 1, got %d", ErrInvalidConfig, c.JournalLimit)
	}
	if c.MaxMachines < 1 {
		return fmt.Errorf("%w: MAX_MACHINES must be >= 1, got %d", ErrInvalidConfig, c.MaxMachines)
	}
	c.InitialWorkerCount = max(c.WorkerMin, min(c.InitialWorkerCount, c.WorkerMax))
	return nil
}
