/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry implements bounded exponential backoff as an explicit state
// machine so the schedule can be tested without issuing any calls.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config configures retry behavior for judge backend calls.
type Config struct {
	// MaxAttempts is the total number of attempts including the first (default: 3).
	// 1 means do not retry at all.
	MaxAttempts int
	// BaseBackoff is the wait after the first failed attempt (default: 1s).
	BaseBackoff time.Duration
	// MaxBackoff caps the doubled backoff (default: 10s).
	MaxBackoff time.Duration
	// MaxJitter is the maximum random jitter added to backoff (default: 0).
	MaxJitter time.Duration
}

// Validate checks that the retry configuration has valid values.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.BaseBackoff < 0 {
		return errors.New("base backoff cannot be negative")
	}
	if c.MaxBackoff < 0 {
		return errors.New("max backoff cannot be negative")
	}
	if c.MaxJitter < 0 {
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// DefaultConfig returns 3 attempts with backoff starting at 1s, doubling, capped at 10s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  10 * time.Second,
	}
}

// State is the position of a Schedule.
type State int

const (
	// Ready means another attempt may be issued.
	Ready State = iota
	// Succeeded means the last attempt returned no error.
	Succeeded
	// Failed means the last error was not retryable.
	Failed
	// Exhausted means the attempt budget is spent.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Schedule tracks the attempt counter and backoff for one logical call.
// It is not safe for concurrent use.
type Schedule struct {
	cfg      Config
	attempts int
	state    State
}

// NewSchedule starts a schedule in the Ready state.
func NewSchedule(cfg Config) *Schedule {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Schedule{cfg: cfg}
}

// Attempt returns the 1-based number of the attempt about to be issued,
// or of the last attempt once the schedule is terminal.
func (s *Schedule) Attempt() int {
	if s.state == Ready {
		return s.attempts + 1
	}
	return s.attempts
}

// State returns the current state.
func (s *Schedule) State() State {
	return s.state
}

// Observe records the outcome of an attempt and returns the wait before the
// next one. The returned bool is true only when the schedule is Ready again.
func (s *Schedule) Observe(err error, retryable bool) (time.Duration, bool) {
	if s.state != Ready {
		return 0, false
	}
	s.attempts++
	switch {
	case err == nil:
		s.state = Succeeded
		return 0, false
	case !retryable:
		s.state = Failed
		return 0, false
	case s.attempts >= s.cfg.MaxAttempts:
		s.state = Exhausted
		return 0, false
	}
	return s.Backoff(s.attempts), true
}

// Backoff returns the wait after the given failed attempt (1-based):
// BaseBackoff * 2^(attempt-1), capped at MaxBackoff, without jitter.
func (s *Schedule) Backoff(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 32)
	backoff := s.cfg.BaseBackoff << (attempt - 1)
	if s.cfg.MaxBackoff > 0 {
		backoff = min(backoff, s.cfg.MaxBackoff)
	}
	return backoff
}

func (s *Schedule) jitter() time.Duration {
	if s.cfg.MaxJitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(s.cfg.MaxJitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// Do executes fn with exponential backoff retry. It only retries on errors
// that isRetryable accepts. The attempt number (1-based) is passed to fn.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func(attempt int) (T, error)) (T, error) {
	var result T
	var lastErr error

	s := NewSchedule(cfg)
	for s.State() == Ready {
		attempt := s.Attempt()
		result, lastErr = fn(attempt)
		wait, again := s.Observe(lastErr, lastErr != nil && isRetryable(lastErr))
		if !again {
			break
		}
		wait += s.jitter()

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt).
			With("max_attempts", cfg.MaxAttempts).
			With("backoff", wait).
			With("error", lastErr.Error()).
			Warn("Retryable judge failure, backing off")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
	}

	switch s.State() {
	case Succeeded:
		return result, nil
	case Exhausted:
		return result, fmt.Errorf("%s failed after %d attempts: %w", operation, s.Attempt(), lastErr)
	default:
		return result, lastErr
	}
}
