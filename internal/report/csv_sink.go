// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package report accumulates accepted rows into the durable CSV report
// artifact: one file per run, a header row written exactly once, and an
// incremental append per drained window so a fatal abort preserves
// everything already written.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/metrics"
	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// ErrSinkWrite wraps any failure to create or append to the report
// artifact. Always fatal to the run.
var ErrSinkWrite = errors.New("report sink write failed")

// Columns is the fixed report schema, in order.
var Columns = []string{
	"Activity Time",
	"Activity",
	"Folder Name",
	"Performed By",
	"Folder URL",
	"Site URL",
	"Workload",
	"Risk Score",
	"Duration (Days)",
	"More Info",
}

// activityTimeLayout formats the local activity timestamp in the report.
const activityTimeLayout = "2006-01-02 15:04:05"

// Filename returns the run-stamped artifact name.
func Filename(start time.Time) string {
	return fmt.Sprintf("Audit_SPO_Folder_Activity_Report_%s.csv", start.Format("2006-01-02_150405"))
}

// CSVSink appends report rows to a single CSV file. Owned exclusively by
// the sequential main loop; not safe for concurrent use.
type CSVSink struct {
	path          string
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
	rows          int
}

// NewCSVSink creates the run's report artifact under dir, named after the
// run start time. The header is written on the first Append, so a run that
// matches zero records still leaves a well-formed artifact behind.
func NewCSVSink(dir string, runStart time.Time) (*CSVSink, error) {
	path := filepath.Join(dir, Filename(runStart))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrSinkWrite, path, err)
	}
	return &CSVSink{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
	}, nil
}

// Append writes rows to the artifact and flushes. Each call appends; prior
// content is never rewritten. The first call also writes the header row.
func (s *CSVSink) Append(rows []models.ReportRow) error {
	if !s.headerWritten {
		if err := s.writer.Write(Columns); err != nil {
			return fmt.Errorf("%w: header: %w", ErrSinkWrite, err)
		}
		s.headerWritten = true
	}

	for i := range rows {
		if err := s.writer.Write(formatRow(&rows[i])); err != nil {
			return fmt.Errorf("%w: row: %w", ErrSinkWrite, err)
		}
	}

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrSinkWrite, err)
	}

	s.rows += len(rows)
	metrics.ReportRows.Add(float64(len(rows)))
	return nil
}

// Close flushes any pending output (including the header for an empty
// report) and closes the artifact.
func (s *CSVSink) Close() error {
	if !s.headerWritten {
		if err := s.writer.Write(Columns); err != nil {
			_ = s.file.Close()
			return fmt.Errorf("%w: header: %w", ErrSinkWrite, err)
		}
		s.headerWritten = true
	}
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("%w: flush: %w", ErrSinkWrite, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close: %w", ErrSinkWrite, closeErr)
	}
	return nil
}

// Path returns the artifact's location on disk.
func (s *CSVSink) Path() string {
	return s.path
}

// Count returns the cumulative number of data rows appended so far.
func (s *CSVSink) Count() int {
	return s.rows
}

// formatRow renders a row in the fixed column order.
func formatRow(row *models.ReportRow) []string {
	return []string{
		row.ActivityTime.Format(activityTimeLayout),
		row.Activity,
		row.FolderName,
		row.PerformedBy,
		row.FolderURL,
		row.SiteURL,
		string(row.Workload),
		string(row.RiskScore),
		strconv.FormatFloat(row.DurationDays, 'f', 1, 64),
		row.RawDetail,
	}
}
