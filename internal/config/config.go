// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package config defines the run configuration and its layered loading:
// built-in defaults, an optional YAML file, then AUDIT_-prefixed
// environment variables, highest priority last.
package config

import (
	"fmt"
	"time"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// dateLayout is the accepted format for StartDate and EndDate.
const dateLayout = "2006-01-02"

// Config is the complete run configuration.
type Config struct {
	Source  SourceConfig  `koanf:"source"`
	Run     RunConfig     `koanf:"run"`
	Filter  FilterConfig  `koanf:"filter"`
	Metrics MetricsConfig `koanf:"metrics"`
	Logging LoggingConfig `koanf:"logging"`
}

// SourceConfig locates the tenant audit query endpoint.
type SourceConfig struct {
	// URL is the audit query endpoint base URL.
	URL string `koanf:"url"`

	// Token is the bearer token used to authenticate queries.
	Token string `koanf:"token"`
}

// RunConfig bounds the retrieval pass.
type RunConfig struct {
	// StartDate is the inclusive range start (YYYY-MM-DD).
	// Default: 180 days before today.
	StartDate string `koanf:"start_date"`

	// EndDate is the inclusive range end (YYYY-MM-DD).
	// Default: now.
	EndDate string `koanf:"end_date"`

	// IntervalMinutes is the window size the range is split into.
	IntervalMinutes int `koanf:"interval_minutes" validate:"gte=1,lte=10080"`

	// ThrottleLimit is the pipeline worker degree.
	ThrottleLimit int `koanf:"throttle_limit" validate:"gte=1,lte=100"`

	// OutputPath is the directory the report artifact is created in.
	OutputPath string `koanf:"output_path"`
}

// FilterConfig carries the caller-supplied inclusion predicates.
type FilterConfig struct {
	PerformedBy        string `koanf:"performed_by" validate:"omitempty,email"`
	SiteURL            string `koanf:"site_url" validate:"omitempty,spourl"`
	ImportSitesCSV     string `koanf:"import_sites_csv"`
	SharePointOnline   bool   `koanf:"sharepoint_online"`
	OneDrive           bool   `koanf:"onedrive"`
	IncludeSystemEvent bool   `koanf:"include_system_event"`
}

// MetricsConfig configures metrics publication. The tool exits when the
// run completes, so metrics reach Prometheus via a Pushgateway rather
// than a scrape endpoint.
type MetricsConfig struct {
	// PushURL is the Pushgateway base URL. Empty disables the push.
	PushURL string `koanf:"push_url" validate:"omitempty,url"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			URL:   "",
			Token: "",
		},
		Run: RunConfig{
			StartDate:       "", // empty = 180 days back
			EndDate:         "", // empty = now
			IntervalMinutes: 1440,
			ThrottleLimit:   20,
			OutputPath:      ".",
		},
		Filter: FilterConfig{
			PerformedBy:        "",
			SiteURL:            "",
			ImportSitesCSV:     "",
			SharePointOnline:   false,
			OneDrive:           false,
			IncludeSystemEvent: false,
		},
		Metrics: MetricsConfig{
			PushURL: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DateRange resolves the configured date strings against now. An unset
// start defaults to 180 days before today (date-truncated, matching the
// upstream retention boundary); an unset end defaults to now. An explicit
// end date covers that entire day.
func (r *RunConfig) DateRange(now time.Time) (start, end time.Time, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if r.StartDate == "" {
		start = today.AddDate(0, 0, -180)
	} else {
		start, err = time.ParseInLocation(dateLayout, r.StartDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse start_date %q: %w", r.StartDate, err)
		}
	}

	if r.EndDate == "" {
		end = now
	} else {
		end, err = time.ParseInLocation(dateLayout, r.EndDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse end_date %q: %w", r.EndDate, err)
		}
		// An explicit end date is inclusive: cover the whole day.
		end = end.AddDate(0, 0, 1)
		if end.After(now) {
			end = now
		}
	}

	return start, end, nil
}

// Interval returns the configured window size as a duration.
func (r *RunConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMinutes) * time.Minute
}

// WorkloadScope maps the mutually exclusive workload switches to a scope.
func (f *FilterConfig) WorkloadScope() models.WorkloadScope {
	switch {
	case f.SharePointOnline:
		return models.ScopeSharePointOnly
	case f.OneDrive:
		return models.ScopeOneDriveOnly
	default:
		return models.ScopeAll
	}
}

// Criteria builds the immutable filter criteria for the run. The site
// allow-list is loaded separately and passed in; nil means no allow-list.
func (f *FilterConfig) Criteria(allowList map[string]struct{}) models.FilterCriteria {
	return models.FilterCriteria{
		IncludeSystemEvents: f.IncludeSystemEvent,
		PerformedBy:         f.PerformedBy,
		WorkloadScope:       f.WorkloadScope(),
		SiteURL:             f.SiteURL,
		SiteAllowList:       allowList,
	}
}
