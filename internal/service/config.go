package service

import (
	"github.com/sonique-audio/sonique/internal/fingerprint"
	"github.com/sonique-audio/sonique/internal/storage"
	"github.com/sonique-audio/sonique/pkg/logger"
)

type Config struct {
	DBPath       string
	FanOut       int
	MaxTimeDelta float64
	TimeUnit     float64
	Workers      int
	Logger       *logger.Logger
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

func WithFanOut(fanout int) Option {
	return func(c *Config) { c.FanOut = fanout }
}

func WithMaxTimeDelta(seconds float64) Option {
	return func(c *Config) { c.MaxTimeDelta = seconds }
}

func WithTimeUnit(seconds float64) Option {
	return func(c *Config) { c.TimeUnit = seconds }
}

func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func defaultConfig() *Config {
	return &Config{
		DBPath:       storage.DefaultPath(),
		FanOut:       fingerprint.DefaultFanOut,
		MaxTimeDelta: fingerprint.DefaultMaxTimeDelta,
		TimeUnit:     fingerprint.DefaultTimeUnit,
		Logger:       logger.GetLogger(),
	}
}
