// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package audit

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/logging"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/metrics"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// BreakerSource wraps a Source with a circuit breaker so that a flapping
// or unreachable audit endpoint stops being hammered while it recovers.
//
// Throttle responses (ErrThrottled) are counted as successes by the
// breaker: rate limiting is the retry policy's concern and must not open
// the circuit. Only genuine upstream failures trip it.
type BreakerSource struct {
	source Source
	cb     *gobreaker.CircuitBreaker[[]models.RawAuditRecord]
	name   string
}

// NewBreakerSource wraps src in a circuit breaker. The breaker opens
// after 5 consecutive failures and waits 60 seconds before probing again
// with up to 2 half-open requests.
func NewBreakerSource(src Source) *BreakerSource {
	name := "audit-source"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]models.RawAuditRecord](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Rate limiting is handled by the retry policy, not the breaker.
			return err == nil || errors.Is(err, ErrThrottled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Audit source circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerSource{source: src, cb: cb, name: name}
}

// Search executes the query through the circuit breaker.
func (b *BreakerSource) Search(ctx context.Context, q Query) ([]models.RawAuditRecord, error) {
	return b.cb.Execute(func() ([]models.RawAuditRecord, error) {
		return b.source.Search(ctx, q)
	})
}

// Disconnect bypasses the breaker: teardown is best effort and should be
// attempted even when the circuit is open.
func (b *BreakerSource) Disconnect(ctx context.Context, sessionID string) error {
	return b.source.Disconnect(ctx, sessionID)
}

// State returns the current breaker state.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}

// IsBreakerOpen reports whether err originates from an open or saturated
// circuit rather than the upstream itself.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}
