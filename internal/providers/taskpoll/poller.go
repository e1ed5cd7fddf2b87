// Package taskpoll implements the submit→poll→terminal wait loop shared by
// every task-based provider client. Providers differ only in how a status
// snapshot is fetched and when it counts as terminal, so the loop is generic
// over the snapshot type.
package taskpoll

import (
	"context"
	"time"
)

const (
	// DefaultInterval spaces successive polls for the same task.
	DefaultInterval = 5 * time.Second
	// DefaultMaxAttempts bounds the wait; exhausting it yields a timeout
	// outcome, never an error.
	DefaultMaxAttempts = 60
)

// Config tunes one wait loop.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Wait calls fetch at a fixed interval until it reports a terminal snapshot,
// the attempt bound is exhausted, or ctx is cancelled. Polls for one task are
// strictly sequential; fetch is invoked at most MaxAttempts times.
//
// The boolean result is true when the bound was exhausted without a terminal
// snapshot. That is a timeout outcome for the caller to encode as a terminal
// result status: the remote task was never cancelled and may still settle.
// Cancellation via ctx is honored at the next sleep.
func Wait[T any](ctx context.Context, cfg Config, fetch func(ctx context.Context) (T, bool, error)) (T, bool, error) {
	cfg = cfg.withDefaults()

	var last T
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		snapshot, terminal, err := fetch(ctx)
		if err != nil {
			var zero T
			return zero, false, err
		}
		last = snapshot
		if terminal {
			return snapshot, false, nil
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-time.After(cfg.Interval):
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}
	return last, true, nil
}
