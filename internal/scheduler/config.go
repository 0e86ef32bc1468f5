package scheduler

import (
	"time"
)

// Config controls scheduler intervals and job behavior.
type Config struct {
	RunInterval time.Duration

	// PayoutDelay is how long after a month closes before the batch for
	// that month is generated. Gives late view events time to land.
	PayoutDelay time.Duration

	// StalePendingThreshold marks pending payouts older than this for a
	// warning sweep.
	StalePendingThreshold time.Duration

	// EnabledJobs restricts which jobs run. Empty means all jobs.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:           time.Hour,
		PayoutDelay:           24 * time.Hour,
		StalePendingThreshold: 7 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.PayoutDelay < 0 {
		c.PayoutDelay = defaults.PayoutDelay
	}
	if c.StalePendingThreshold <= 0 {
		c.StalePendingThreshold = defaults.StalePendingThreshold
	}
	return c
}
