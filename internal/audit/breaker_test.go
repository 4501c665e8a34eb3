// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// errSource returns the same error for every search.
type errSource struct {
	err   error
	calls int
}

func (s *errSource) Search(context.Context, Query) ([]models.RawAuditRecord, error) {
	s.calls++
	return nil, s.err
}

func (s *errSource) Disconnect(context.Context, string) error {
	s.calls++
	return s.err
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	src := &errSource{err: errors.New("connection refused")}
	breaker := NewBreakerSource(src)

	for i := 0; i < 5; i++ {
		if _, err := breaker.Search(context.Background(), Query{}); err == nil {
			t.Fatalf("attempt %d: expected an error", i)
		}
	}

	if breaker.State() != gobreaker.StateOpen {
		t.Fatalf("state after 5 failures: expected open, got %v", breaker.State())
	}

	// Open circuit: the upstream is not called again.
	before := src.calls
	_, err := breaker.Search(context.Background(), Query{})
	if !IsBreakerOpen(err) {
		t.Errorf("expected an open-circuit error, got: %v", err)
	}
	if src.calls != before {
		t.Errorf("open circuit still reached the upstream (%d calls)", src.calls-before)
	}
}

func TestBreakerIgnoresThrottling(t *testing.T) {
	src := &errSource{err: fmt.Errorf("HTTP 429: %w", ErrThrottled)}
	breaker := NewBreakerSource(src)

	// Far more throttle responses than the failure threshold.
	for i := 0; i < 20; i++ {
		_, err := breaker.Search(context.Background(), Query{})
		if !errors.Is(err, ErrThrottled) {
			t.Fatalf("attempt %d: expected ErrThrottled, got %v", i, err)
		}
	}

	if breaker.State() != gobreaker.StateClosed {
		t.Errorf("state after throttling: expected closed, got %v", breaker.State())
	}
	if src.calls != 20 {
		t.Errorf("upstream calls: expected 20, got %d", src.calls)
	}
}

func TestBreakerDisconnectBypassesCircuit(t *testing.T) {
	src := &errSource{err: errors.New("connection refused")}
	breaker := NewBreakerSource(src)

	for i := 0; i < 5; i++ {
		_, _ = breaker.Search(context.Background(), Query{})
	}
	if breaker.State() != gobreaker.StateOpen {
		t.Fatalf("precondition failed: breaker not open")
	}

	searches := src.calls
	_ = breaker.Disconnect(context.Background(), "session-123")
	if src.calls != searches+1 {
		t.Error("disconnect should reach the upstream even with an open circuit")
	}
}

func TestIsBreakerOpen(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"open state", gobreaker.ErrOpenState, true},
		{"too many requests", gobreaker.ErrTooManyRequests, true},
		{"wrapped open state", fmt.Errorf("search: %w", gobreaker.ErrOpenState), true},
		{"nil", nil, false},
		{"throttle", ErrThrottled, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBreakerOpen(tt.err); got != tt.want {
				t.Errorf("IsBreakerOpen(%v) = %v, expected %v", tt.err, got, tt.want)
			}
		})
	}
}
