// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package report

import (
	"encoding/csv"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

var runStart = time.Date(2026, 9, 1, 14, 30, 45, 0, time.UTC)

func sampleRow(activity string, at time.Time) models.ReportRow {
	return models.ReportRow{
		ActivityTime: at,
		Activity:     activity,
		FolderName:   "Quarterly Reports",
		PerformedBy:  "user1@domain.com",
		FolderURL:    "https://tenant.sharepoint.com/sites/Finance/Shared Documents/Quarterly Reports",
		SiteURL:      "https://tenant.sharepoint.com/sites/Finance",
		Workload:     models.WorkloadSharePoint,
		RiskScore:    models.RiskHigh,
		DurationDays: 1.5,
		RawDetail:    `{"Workload":"SharePoint"}`,
	}
}

func readArtifact(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse artifact: %v", err)
	}
	return lines
}

func TestFilename(t *testing.T) {
	got := Filename(runStart)
	want := "Audit_SPO_Folder_Activity_Report_2026-09-01_143045.csv"
	if got != want {
		t.Errorf("filename: expected %q, got %q", want, got)
	}
}

func TestSinkHeaderWrittenOnce(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir(), runStart)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	at := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)
	if err := sink.Append([]models.ReportRow{sampleRow("FolderDeleted", at)}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := sink.Append([]models.ReportRow{sampleRow("FolderModified", at)}); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readArtifact(t, sink.Path())
	if len(lines) != 3 {
		t.Fatalf("lines: expected header plus 2 rows, got %d", len(lines))
	}
	if !reflect.DeepEqual(lines[0], Columns) {
		t.Errorf("header: expected %v, got %v", Columns, lines[0])
	}
	for i, line := range lines[1:] {
		if reflect.DeepEqual(line, Columns) {
			t.Errorf("row %d repeats the header", i)
		}
	}
	if sink.Count() != 2 {
		t.Errorf("count: expected 2, got %d", sink.Count())
	}
}

func TestSinkRowFormatting(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir(), runStart)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	row := sampleRow("FolderDeleted", time.Date(2026, 8, 30, 9, 15, 7, 0, time.UTC))
	row.DurationDays = 2.0
	if err := sink.Append([]models.ReportRow{row}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readArtifact(t, sink.Path())
	want := []string{
		"2026-08-30 09:15:07",
		"FolderDeleted",
		"Quarterly Reports",
		"user1@domain.com",
		"https://tenant.sharepoint.com/sites/Finance/Shared Documents/Quarterly Reports",
		"https://tenant.sharepoint.com/sites/Finance",
		"SharePoint",
		"High",
		"2.0", // always one decimal place
		`{"Workload":"SharePoint"}`,
	}
	if !reflect.DeepEqual(lines[1], want) {
		t.Errorf("row: expected %v, got %v", want, lines[1])
	}
}

func TestSinkEmptyAppendKeepsHeader(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir(), runStart)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.Append(nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readArtifact(t, sink.Path())
	if len(lines) != 1 {
		t.Fatalf("lines: expected header only, got %d", len(lines))
	}
	if sink.Count() != 0 {
		t.Errorf("count: expected 0, got %d", sink.Count())
	}
}

func TestSinkZeroRowsStillWellFormed(t *testing.T) {
	// A run that matches nothing must still leave a parseable artifact
	// with the schema header.
	sink, err := NewCSVSink(t.TempDir(), runStart)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readArtifact(t, sink.Path())
	if len(lines) != 1 || !reflect.DeepEqual(lines[0], Columns) {
		t.Errorf("expected a header-only artifact, got %v", lines)
	}
}

func TestNewCSVSinkBadDirectory(t *testing.T) {
	_, err := NewCSVSink("/nonexistent/output/dir", runStart)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrSinkWrite) {
		t.Errorf("expected a sink write error, got: %v", err)
	}
}
