package usecases

import (
	"os"
	"time"
)

// Options tunes the timing and cleanup behaviour of the PlaybackService.
type Options struct {
	// TempDir is the scratch area. Local sources inside it are deleted once played.
	TempDir string

	PollInterval     time.Duration
	IdlePollInterval time.Duration
	IdlePollAttempts int

	ProgressInterval      time.Duration
	ProgressEarlyInterval time.Duration
	ProgressEarlyTicks    int

	DisconnectTimeout time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TempDir:               os.TempDir(),
		PollInterval:          500 * time.Millisecond,
		IdlePollInterval:      100 * time.Millisecond,
		IdlePollAttempts:      20,
		ProgressInterval:      15 * time.Second,
		ProgressEarlyInterval: 5 * time.Second,
		ProgressEarlyTicks:    3,
		DisconnectTimeout:     10 * time.Second,
		Now:                   time.Now,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TempDir == "" {
		o.TempDir = def.TempDir
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.IdlePollInterval <= 0 {
		o.IdlePollInterval = def.IdlePollInterval
	}
	if o.IdlePollAttempts <= 0 {
		o.IdlePollAttempts = def.IdlePollAttempts
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = def.ProgressInterval
	}
	if o.ProgressEarlyInterval <= 0 {
		o.ProgressEarlyInterval = o.ProgressInterval
	}
	if o.ProgressEarlyTicks < 0 {
		o.ProgressEarlyTicks = 0
	}
	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = def.DisconnectTimeout
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	return o
}
