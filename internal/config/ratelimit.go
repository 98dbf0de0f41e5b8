package config

import "time"

// RateLimitConfig configures the Redis limiters on write routes.
//
// Callers may make Capacity writes per Window.  Settlement attempts are
// also limited per payment: the same payer may submit one transaction id
// at most RetryCapacity times per RetryWindow, which bounds how hard a
// client can hammer the replay path after a dropped response.
type RateLimitConfig struct {
	Enabled       bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity      int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RetryCapacity int           `env:"RATE_LIMIT_RETRY_CAPACITY" envDefault:"5"`
	RetryWindow   time.Duration `env:"RATE_LIMIT_RETRY_WINDOW" envDefault:"1m"`
	Prefix        string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
}

func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.RetryCapacity < 1 {
		c.RetryCapacity = 1
	}
	if c.RetryWindow <= 0 {
		c.RetryWindow = c.Window
	}
	if c.Prefix == "" {
		c.Prefix = "rl"
	}
}
