// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package retry wraps audit source calls with throttle classification,
// fixed-interval backoff, and proactive inter-call pacing.
//
// Classification is explicit rather than exception-driven: every upstream
// error is either retryable throttling (backed off and retried up to a
// ceiling) or fatal (surfaced immediately, aborting the run).
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/audit"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/logging"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/metrics"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// Outcome classifies the result of a single audit source call.
type Outcome int

const (
	// OutcomeSuccess means the call returned a batch (possibly empty).
	OutcomeSuccess Outcome = iota

	// OutcomeRetryable means upstream throttling; the call may be retried
	// against the identical window after backoff.
	OutcomeRetryable

	// OutcomeFatal means an unrecoverable failure; the run must abort.
	OutcomeFatal
)

// Classify maps an audit source error to an outcome. Throttle signals are
// the typed ErrThrottled, an open circuit breaker (wait for recovery), or
// a rate-limit message from an upstream that lacks typed errors.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, audit.ErrThrottled) || audit.IsBreakerOpen(err) {
		return OutcomeRetryable
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "throttl") || strings.Contains(msg, "too many requests") {
		return OutcomeRetryable
	}
	return OutcomeFatal
}

// Result is the explicit outcome of one policy-wrapped query: either a
// batch or a terminal error. Retryable failures never surface here; they
// are retried internally until success or the throttle ceiling.
type Result struct {
	Records []models.RawAuditRecord
	Err     error
}

const (
	// DefaultBackoffInterval is the fixed wait between throttled attempts.
	DefaultBackoffInterval = 30 * time.Second

	// DefaultInterCallDelay paces successive upstream calls to reduce the
	// chance of triggering rate limits in the first place.
	DefaultInterCallDelay = 500 * time.Millisecond

	// DefaultThrottleCeiling bounds consecutive throttled attempts for one
	// window before the failure escalates to fatal.
	DefaultThrottleCeiling = 10
)

// Policy wraps a Source with backoff-and-retry on throttling and fixed
// pacing between calls.
type Policy struct {
	source          audit.Source
	backoffInterval time.Duration
	throttleCeiling uint64
	limiter         *rate.Limiter
}

// Option customizes a Policy.
type Option func(*Policy)

// WithBackoffInterval overrides the fixed backoff between throttled
// attempts. Tests shorten this to keep runs fast.
func WithBackoffInterval(d time.Duration) Option {
	return func(p *Policy) { p.backoffInterval = d }
}

// WithThrottleCeiling overrides the consecutive-throttle attempt ceiling.
func WithThrottleCeiling(n uint64) Option {
	return func(p *Policy) { p.throttleCeiling = n }
}

// WithInterCallDelay overrides the proactive pacing between calls.
func WithInterCallDelay(d time.Duration) Option {
	return func(p *Policy) { p.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// NewPolicy creates a retry policy around src with the default 30 second
// backoff, 500 ms pacing, and a ceiling of 10 consecutive throttles.
func NewPolicy(src audit.Source, opts ...Option) *Policy {
	p := &Policy{
		source:          src,
		backoffInterval: DefaultBackoffInterval,
		throttleCeiling: DefaultThrottleCeiling,
		limiter:         rate.NewLimiter(rate.Every(DefaultInterCallDelay), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify is invoked before each backoff wait with the throttle error and
// the wait duration. The paginator uses it to surface its backoff state.
type Notify func(err error, delay time.Duration)

// Execute runs one policy-wrapped query. Throttled attempts are retried
// against the identical query after the fixed backoff until either a
// terminal result or the throttle ceiling; everything else fails fast.
func (p *Policy) Execute(ctx context.Context, q audit.Query, notify Notify) Result {
	var records []models.RawAuditRecord

	op := func() error {
		// Proactive pacing applies to every attempt, including retries.
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		recs, err := p.source.Search(ctx, q)
		switch Classify(err) {
		case OutcomeSuccess:
			records = recs
			return nil
		case OutcomeRetryable:
			metrics.ThrottleRetries.Inc()
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.backoffInterval), p.throttleCeiling),
		ctx,
	)

	n := notify
	if n == nil {
		n = func(err error, delay time.Duration) {
			logging.Warn().Err(err).Dur("backoff", delay).Msg("Audit source throttled, backing off")
		}
	}

	if err := backoff.RetryNotify(op, bo, backoff.Notify(n)); err != nil {
		if Classify(err) == OutcomeRetryable {
			// Still throttled after the ceiling: escalate to fatal.
			err = fmt.Errorf("throttle retry ceiling exceeded after %d attempts: %w", p.throttleCeiling+1, err)
		}
		return Result{Err: err}
	}
	return Result{Records: records}
}
