// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package pipeline turns raw audit records into report rows: it applies
// the run's inclusion predicates, computes the derived fields, and
// classifies risk, fanning the per-record work across a bounded worker
// pool.
//
// Per-record evaluation is a pure function of (record, criteria, clock):
// workers read only the shared immutable criteria and write into their own
// result slot, so no locking is needed around the computation itself. A
// single record's parse failure drops that record with a warning and never
// aborts the batch.
package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/logging"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/metrics"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

const (
	minWorkers = 1
	maxWorkers = 100
)

// Stats summarizes one processed batch.
type Stats struct {
	Accepted    int
	Filtered    int
	ParseErrors int
}

// Pipeline applies one run's filter criteria with a fixed worker degree.
// The enrichment clock is fixed at construction so duration computation is
// deterministic across the run.
type Pipeline struct {
	criteria models.FilterCriteria
	workers  int
	now      time.Time
	location *time.Location
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithNow pins the enrichment clock. Tests use this to make duration
// computation reproducible.
func WithNow(now time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLocation sets the time zone activity times are converted into.
// Default: the process-local zone.
func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) { p.location = loc }
}

// New builds a pipeline for the given criteria. The worker degree is
// clamped to [1, 100].
func New(criteria models.FilterCriteria, workers int, opts ...Option) *Pipeline {
	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	p := &Pipeline{
		criteria: criteria,
		workers:  workers,
		now:      time.Now(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// recordOutcome is the per-index result of evaluating one record.
type recordOutcome struct {
	row *models.ReportRow
	err error
}

// Process evaluates a batch and returns the accepted rows in input order.
// Parse failures are logged as warnings and counted; they never fail the
// batch. Returns early with the rows produced so far if ctx is canceled.
func (p *Pipeline) Process(ctx context.Context, records []models.RawAuditRecord) ([]models.ReportRow, Stats) {
	if len(records) == 0 {
		return nil, Stats{}
	}

	outcomes := make([]recordOutcome, len(records))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(records) {
		workers = len(records)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				row, err := Evaluate(&records[i], p.criteria, p.now, p.location)
				outcomes[i] = recordOutcome{row: row, err: err}
			}
		}()
	}

feed:
	for i := range records {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Join results on the coordinating goroutine: warnings, counters, and
	// ordering all happen here, never inside workers.
	var rows []models.ReportRow
	var stats Stats
	for i := range outcomes {
		switch {
		case outcomes[i].err != nil:
			stats.ParseErrors++
			metrics.RecordsDropped.WithLabelValues("parse_error").Inc()
			logging.Warn().
				Err(outcomes[i].err).
				Str("user", records[i].UserIDs).
				Str("operation", records[i].Operations).
				Msg("Dropping unparseable audit record")
		case outcomes[i].row != nil:
			stats.Accepted++
			rows = append(rows, *outcomes[i].row)
		default:
			stats.Filtered++
			metrics.RecordsDropped.WithLabelValues("filtered").Inc()
		}
	}
	return rows, stats
}

// Evaluate is the pure per-record function: it decodes the record's detail
// payload, applies every inclusion predicate, and computes the derived
// fields. Returns (nil, nil) for a record rejected by the predicates and
// (nil, err) for an undecodable payload. Deterministic for a fixed now.
func Evaluate(rec *models.RawAuditRecord, criteria models.FilterCriteria, now time.Time, loc *time.Location) (*models.ReportRow, error) {
	data, err := models.DecodeAuditData(rec)
	if err != nil {
		return nil, err
	}

	// All predicates must pass.
	if !criteria.IncludeSystemEvents && models.IsSystemPrincipal(rec.UserIDs) {
		return nil, nil
	}
	if criteria.PerformedBy != "" && criteria.PerformedBy != rec.UserIDs {
		return nil, nil
	}
	if !criteria.WorkloadScope.Matches(data.Workload) {
		return nil, nil
	}
	if criteria.SiteURL != "" && criteria.SiteURL != data.SiteURL {
		return nil, nil
	}
	if len(criteria.SiteAllowList) > 0 {
		if _, ok := criteria.SiteAllowList[data.SiteURL]; !ok {
			return nil, nil
		}
	}

	activityTime := data.CreationTime.In(loc)
	return &models.ReportRow{
		ActivityTime: activityTime,
		Activity:     rec.Operations,
		FolderName:   data.SourceFileName,
		PerformedBy:  rec.UserIDs,
		FolderURL:    data.ObjectID,
		SiteURL:      data.SiteURL,
		Workload:     data.Workload,
		RiskScore:    ClassifyRisk(rec.Operations),
		DurationDays: durationDays(now, activityTime),
		RawDetail:    rec.AuditData,
	}, nil
}

// durationDays returns the elapsed days between now and the activity,
// rounded to one decimal place.
func durationDays(now, activityTime time.Time) float64 {
	days := now.Sub(activityTime).Hours() / 24
	return math.Round(days*10) / 10
}
