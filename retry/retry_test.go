/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestScheduleBackoff(t *testing.T) {
	s := NewSchedule(DefaultConfig())

	got := []time.Duration{s.Backoff(1), s.Backoff(2), s.Backoff(3), s.Backoff(4), s.Backoff(5)}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("backoff schedule (-want +got):\n%s", diff)
	}
}

func TestScheduleTransitions(t *testing.T) {
	tests := []struct {
		name      string
		outcomes  []error
		retryable []bool
		wantState State
		wantWaits []time.Duration
	}{{
		name:      "first attempt succeeds",
		outcomes:  []error{nil},
		retryable: []bool{false},
		wantState: Succeeded,
	}, {
		name:      "non-retryable fails immediately",
		outcomes:  []error{errors.New("auth")},
		retryable: []bool{false},
		wantState: Failed,
	}, {
		name:      "retry then succeed",
		outcomes:  []error{errTransient, nil},
		retryable: []bool{true, false},
		wantState: Succeeded,
		wantWaits: []time.Duration{time.Second},
	}, {
		name:      "exhausts after three attempts",
		outcomes:  []error{errTransient, errTransient, errTransient},
		retryable: []bool{true, true, true},
		wantState: Exhausted,
		wantWaits: []time.Duration{time.Second, 2 * time.Second},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSchedule(DefaultConfig())
			var waits []time.Duration
			for i, err := range tt.outcomes {
				if s.State() != Ready {
					t.Fatalf("schedule left Ready early at outcome %d", i)
				}
				if wait, again := s.Observe(err, tt.retryable[i]); again {
					waits = append(waits, wait)
				}
			}
			if s.State() != tt.wantState {
				t.Errorf("state: got = %v, wanted = %v", s.State(), tt.wantState)
			}
			if diff := cmp.Diff(tt.wantWaits, waits); diff != "" {
				t.Errorf("waits (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDo(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	t.Run("retries transient errors", func(t *testing.T) {
		var attempts []int
		got, err := Do(context.Background(), cfg, "test", isTransient, func(attempt int) (string, error) {
			attempts = append(attempts, attempt)
			if attempt < 3 {
				return "", errTransient
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if got != "ok" {
			t.Errorf("result: got = %q, wanted = %q", got, "ok")
		}
		if diff := cmp.Diff([]int{1, 2, 3}, attempts); diff != "" {
			t.Errorf("attempts (-want +got):\n%s", diff)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		permanent := errors.New("bad request")
		calls := 0
		_, err := Do(context.Background(), cfg, "test", isTransient, func(int) (string, error) {
			calls++
			return "", permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("error: got = %v, wanted %v", err, permanent)
		}
		if calls != 1 {
			t.Errorf("calls: got = %d, wanted = 1", calls)
		}
	})

	t.Run("wraps the last error when exhausted", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), cfg, "test", isTransient, func(int) (string, error) {
			calls++
			return "", errTransient
		})
		if !errors.Is(err, errTransient) {
			t.Errorf("error: got = %v, wanted wrapping %v", err, errTransient)
		}
		if calls != 3 {
			t.Errorf("calls: got = %d, wanted = 3", calls)
		}
	})

	t.Run("stops waiting when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Config{MaxAttempts: 3, BaseBackoff: time.Hour, MaxBackoff: time.Hour}
		calls := 0
		_, err := Do(ctx, slow, "test", isTransient, func(int) (string, error) {
			calls++
			cancel()
			return "", errTransient
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error: got = %v, wanted %v", err, context.Canceled)
		}
		if calls != 1 {
			t.Errorf("calls: got = %d, wanted = 1", calls)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
	if err := (Config{MaxAttempts: 0}).Validate(); err == nil {
		t.Error("Validate() with zero attempts should fail")
	}
	if err := (Config{MaxAttempts: 1, BaseBackoff: -1}).Validate(); err == nil {
		t.Error("Validate() with negative backoff should fail")
	}
}
