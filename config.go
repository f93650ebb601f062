package stockroom

import "github.com/rs/zerolog"

// Config tunes an Admin's allocation behavior and logging.
type Config struct {
	// InitialColumnCapacity is the number of rows a column allocates the
	// first time it grows.
	InitialColumnCapacity int
	InitialEntityCapacity int
	// MaxCachedQueries bounds the number of distinct component keys whose
	// archetype lists are memoized.
	MaxCachedQueries int
	Logger           zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		InitialColumnCapacity: 8,
		InitialEntityCapacity: 256,
		MaxCachedQueries:      256,
		Logger:                zerolog.Nop(),
	}
}

type Option func(*Config)

func WithColumnCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.InitialColumnCapacity = n
		}
	}
}

func WithEntityCapacity(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.InitialEntityCapacity = n
		}
	}
}

func WithQueryCacheSize(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxCachedQueries = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
