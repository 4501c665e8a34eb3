// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package main is the entry point for the audit report generator.
//
// The monitor performs one bounded pull-transform-emit pass per
// invocation: it pages the tenant's folder-activity audit trail across
// the requested date range (at most 180 days back), filters and enriches
// each record through a bounded worker pool, classifies risk, and appends
// the accepted rows to a run-stamped CSV report.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - AUDIT_-prefixed environment variables (AUDIT_SOURCE_URL, ...)
//   - Config file (audit-monitor.yaml, or AUDIT_CONFIG_PATH)
//   - Built-in defaults
//
// Required settings:
//   - AUDIT_SOURCE_URL: audit query endpoint base URL
//   - AUDIT_SOURCE_TOKEN: bearer token for the endpoint
//
// Common settings:
//   - AUDIT_RUN_START_DATE / AUDIT_RUN_END_DATE: YYYY-MM-DD range
//     (default: last 180 days ending now)
//   - AUDIT_RUN_INTERVAL_MINUTES: query window size (default: 1440)
//   - AUDIT_RUN_THROTTLE_LIMIT: pipeline worker degree (default: 20)
//   - AUDIT_RUN_OUTPUT_PATH: report directory (default: .)
//   - AUDIT_FILTER_PERFORMED_BY: restrict to one user
//   - AUDIT_FILTER_SITE_URL: restrict to one site collection
//   - AUDIT_FILTER_IMPORT_SITES_CSV: CSV with a SiteUrl allow-list column
//   - AUDIT_FILTER_SHAREPOINT_ONLINE / AUDIT_FILTER_ONEDRIVE: workload scope
//   - AUDIT_FILTER_INCLUDE_SYSTEM_EVENT: keep service-principal events
//   - AUDIT_METRICS_PUSH_URL: Pushgateway base URL for run metrics
//
// # Exit behavior
//
// Normal completion logs the row count and artifact path; zero matching
// records is a normal exit. Any fatal error aborts with exit code 1 after
// a best-effort disconnect from the upstream pagination session. Rows
// already written before an abort are preserved.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/audit"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/config"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/logging"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/metrics"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/paginator"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/pipeline"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/report"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/retry"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/sitelist"
)

// disconnectTimeout bounds the best-effort session teardown at run end.
const disconnectTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Audit report run failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runStart := time.Now()
	rangeStart, rangeEnd, err := cfg.Run.DateRange(runStart)
	if err != nil {
		return err
	}

	var allowList map[string]struct{}
	if cfg.Filter.ImportSitesCSV != "" {
		allowList, err = sitelist.Load(cfg.Filter.ImportSitesCSV)
		if err != nil {
			return err
		}
		logging.Info().Int("sites", len(allowList)).Str("file", cfg.Filter.ImportSitesCSV).Msg("Site allow-list loaded")
	}

	client := audit.NewClient(cfg.Source.URL, cfg.Source.Token)
	logging.Info().Str("endpoint", cfg.Source.URL).Msg("Checking audit source connectivity")
	if err := client.Ping(ctx); err != nil {
		return err
	}

	source := audit.NewBreakerSource(client)
	policy := retry.NewPolicy(source)

	pager, err := paginator.New(policy, paginator.Config{
		Start:    rangeStart,
		End:      rangeEnd,
		Interval: cfg.Run.Interval(),
	})
	if err != nil {
		return err
	}

	sink, err := report.NewCSVSink(cfg.Run.OutputPath, runStart)
	if err != nil {
		return err
	}

	pipe := pipeline.New(cfg.Filter.Criteria(allowList), cfg.Run.ThrottleLimit, pipeline.WithNow(runStart))

	windows := paginator.Windows(rangeStart, rangeEnd, cfg.Run.Interval())
	logging.Info().
		Time("start", rangeStart).
		Time("end", rangeEnd).
		Int("windows", len(windows)).
		Str("interval", cfg.Run.Interval().String()).
		Str("session", pager.SessionID()).
		Msg("Starting audit retrieval")

	var totals pipeline.Stats
	windowsDone := 0
	runErr := pager.Run(ctx, func(ctx context.Context, w paginator.Window, records []models.RawAuditRecord) error {
		rows, stats := pipe.Process(ctx, records)
		if err := sink.Append(rows); err != nil {
			return err
		}

		totals.Accepted += stats.Accepted
		totals.Filtered += stats.Filtered
		totals.ParseErrors += stats.ParseErrors
		windowsDone++
		logging.Info().
			Time("window_start", w.Start).
			Time("window_end", w.End).
			Int("retrieved", len(records)).
			Int("accepted", stats.Accepted).
			Int("total_rows", sink.Count()).
			Msg("Window processed")
		return nil
	})

	// Best-effort teardown, attempted on success and failure alike.
	discCtx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := source.Disconnect(discCtx, pager.SessionID()); err != nil {
		logging.Warn().Err(err).Msg("Audit session disconnect failed")
	}

	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	if cfg.Metrics.PushURL != "" {
		if err := metrics.Push(cfg.Metrics.PushURL); err != nil {
			logging.Warn().Err(err).Str("gateway", cfg.Metrics.PushURL).Msg("Metrics push failed")
		}
	}
	if runErr != nil {
		logging.Error().Err(runErr).Str("report", sink.Path()).Int("rows_preserved", sink.Count()).Msg("Run aborted; partial report preserved")
		return runErr
	}

	if sink.Count() == 0 {
		logging.Info().Str("report", sink.Path()).Msg("No records matched the criteria")
		return nil
	}
	logging.Info().
		Int("rows", sink.Count()).
		Int("filtered", totals.Filtered).
		Int("parse_errors", totals.ParseErrors).
		Int("windows", windowsDone).
		Str("report", sink.Path()).
		Msg("Audit report complete")
	return nil
}
