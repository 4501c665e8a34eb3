// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package paginator drives the audit source across the full requested
// time range by issuing successive bounded windows, re-issuing a window
// while its pages stay saturated, and advancing once a page comes back
// below the cap.
//
// Windows are processed strictly in chronological order and never
// concurrently: each window's saturation decision depends on the prior
// call's result, and a throttled retry must target the exact same window.
package paginator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/audit"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/logging"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/metrics"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/retry"
)

// RetentionDays is how far back the audit source keeps data. A start date
// before this boundary fails the run before any query is issued.
const RetentionDays = 180

var (
	// ErrInvalidRange means the end of the requested range precedes its start.
	ErrInvalidRange = errors.New("end date precedes start date")

	// ErrOutOfRetentionRange means the requested start predates the
	// upstream retention boundary.
	ErrOutOfRetentionRange = errors.New("start date predates the audit retention boundary")
)

// State identifies where the pagination loop currently is.
type State int

const (
	StateQuerying State = iota
	StateBackoff
	StateAdvancing
	StateDone
	StateAborted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateQuerying:
		return "querying"
	case StateBackoff:
		return "backoff"
	case StateAdvancing:
		return "advancing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Window is a bounded time range queried as one page-able unit.
// Invariant: Start <= End, and every window is a sub-range of the overall
// requested range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows returns the contiguous, non-overlapping window sequence covering
// [start, end] at the given interval. The final window is clamped to end.
func Windows(start, end time.Time, interval time.Duration) []Window {
	var out []Window
	for ws := start; ws.Before(end); {
		we := ws.Add(interval)
		if we.After(end) {
			we = end
		}
		out = append(out, Window{Start: ws, End: we})
		ws = we
	}
	if len(out) == 0 && start.Equal(end) {
		out = append(out, Window{Start: start, End: end})
	}
	return out
}

// BatchHandler consumes one retrieved page for a window. The paginator
// drains a window completely before moving on, so batches from different
// windows never interleave. A handler error aborts the run.
type BatchHandler func(ctx context.Context, w Window, records []models.RawAuditRecord) error

// Config controls one pagination pass.
type Config struct {
	Start      time.Time
	End        time.Time
	Interval   time.Duration
	Operations []string
	// SessionID identifies the upstream pagination session. Generated when
	// empty; must stay constant across all calls of one run.
	SessionID string
	// PageCap overrides audit.PageSizeCap, for tests only.
	PageCap int
	// Now overrides the clock used for the retention check, for tests only.
	Now func() time.Time
}

// Paginator issues the window sequence against a retry-wrapped source.
type Paginator struct {
	policy     *retry.Policy
	start      time.Time
	end        time.Time
	interval   time.Duration
	operations []string
	sessionID  string
	pageCap    int

	state State
}

// pageFingerprint identifies a returned page well enough to detect the
// upstream re-serving an identical final page for a saturated window.
type pageFingerprint struct {
	count       int
	first, last models.RawAuditRecord
}

func fingerprint(batch []models.RawAuditRecord) pageFingerprint {
	fp := pageFingerprint{count: len(batch)}
	if len(batch) > 0 {
		fp.first = batch[0]
		fp.last = batch[len(batch)-1]
	}
	return fp
}

// New validates the requested range and builds a paginator.
func New(policy *retry.Policy, cfg Config) (*Paginator, error) {
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("%w: start %s, end %s", ErrInvalidRange,
			cfg.Start.Format(time.RFC3339), cfg.End.Format(time.RFC3339))
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	// The boundary is date-truncated so a start of exactly 180 days ago
	// (the documented default) passes.
	n := now()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
	retentionBoundary := today.AddDate(0, 0, -RetentionDays)
	if cfg.Start.Before(retentionBoundary) {
		return nil, fmt.Errorf("%w: start %s is more than %d days ago", ErrOutOfRetentionRange,
			cfg.Start.Format(time.RFC3339), RetentionDays)
	}

	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("window interval must be positive, got %s", cfg.Interval)
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	pageCap := cfg.PageCap
	if pageCap <= 0 {
		pageCap = audit.PageSizeCap
	}
	operations := cfg.Operations
	if len(operations) == 0 {
		operations = audit.DefaultOperations
	}

	return &Paginator{
		policy:     policy,
		start:      cfg.Start,
		end:        cfg.End,
		interval:   cfg.Interval,
		operations: operations,
		sessionID:  sessionID,
		pageCap:    pageCap,
		state:      StateQuerying,
	}, nil
}

// SessionID returns the pagination session token used for the run.
func (p *Paginator) SessionID() string {
	return p.sessionID
}

// State returns the loop's current state.
func (p *Paginator) State() State {
	return p.state
}

// Run drives the full pass. It returns nil once every window in
// [Start, End] has been drained, or the first fatal error. Rows already
// handed to the handler before an abort are preserved, not rolled back.
func (p *Paginator) Run(ctx context.Context, handler BatchHandler) error {
	windowStart := p.start
	windowEnd := p.clampEnd(windowStart)

	// reissuing marks that the current window returned a saturated page
	// and is being queried again using session continuity.
	reissuing := false
	var lastPage pageFingerprint

	for {
		p.state = StateQuerying
		w := Window{Start: windowStart, End: windowEnd}

		result := p.policy.Execute(ctx, p.query(w), func(err error, delay time.Duration) {
			p.state = StateBackoff
			logging.Warn().
				Err(err).
				Dur("backoff", delay).
				Time("window_start", w.Start).
				Time("window_end", w.End).
				Msg("Throttled, backing off before retrying window")
		})
		if result.Err != nil {
			p.state = StateAborted
			return fmt.Errorf("window [%s, %s]: %w",
				w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339), result.Err)
		}

		batch := result.Records
		logging.Debug().
			Time("window_start", w.Start).
			Time("window_end", w.End).
			Int("records", len(batch)).
			Bool("reissued", reissuing).
			Msg("Window page retrieved")

		if len(batch) >= p.pageCap {
			fp := fingerprint(batch)
			if reissuing && fp == lastPage {
				// The upstream re-served an identical full page: the
				// session has no further data for this window despite the
				// cap being hit. Drop the duplicate page and advance.
				logging.Warn().
					Time("window_start", w.Start).
					Time("window_end", w.End).
					Msg("Saturated window re-served an identical page, advancing")
				reissuing = false
				if done := p.advance(&windowStart, &windowEnd); done {
					return nil
				}
				continue
			}
			lastPage = fp
			reissuing = true

			if err := p.handle(ctx, handler, w, batch); err != nil {
				return err
			}
			// Same window again: session continuity returns the next page.
			continue
		}

		reissuing = false
		if err := p.handle(ctx, handler, w, batch); err != nil {
			return err
		}
		if done := p.advance(&windowStart, &windowEnd); done {
			return nil
		}
	}
}

// handle passes a non-empty batch to the handler; handler errors abort.
func (p *Paginator) handle(ctx context.Context, handler BatchHandler, w Window, batch []models.RawAuditRecord) error {
	if len(batch) == 0 {
		return nil
	}
	if err := handler(ctx, w, batch); err != nil {
		p.state = StateAborted
		return fmt.Errorf("window [%s, %s]: %w",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339), err)
	}
	return nil
}

// advance moves to the next window; returns true when the range is done.
func (p *Paginator) advance(windowStart, windowEnd *time.Time) bool {
	metrics.WindowsProcessed.Inc()
	p.state = StateAdvancing

	*windowStart = *windowEnd
	if !windowStart.Before(p.end) {
		p.state = StateDone
		return true
	}
	*windowEnd = p.clampEnd(*windowStart)
	return false
}

// clampEnd bounds a window's end to the overall range end.
func (p *Paginator) clampEnd(windowStart time.Time) time.Time {
	we := windowStart.Add(p.interval)
	if we.After(p.end) {
		return p.end
	}
	return we
}

func (p *Paginator) query(w Window) audit.Query {
	return audit.Query{
		StartTime:      w.Start,
		EndTime:        w.End,
		Operations:     p.operations,
		SessionID:      p.sessionID,
		SessionCommand: audit.SessionCommandLargeSet,
		ResultSize:     p.pageCap,
	}
}
