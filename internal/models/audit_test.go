// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestAuditTimeUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "zone-less audit layout",
			input: `"2026-08-30T09:15:07"`,
			want:  time.Date(2026, 8, 30, 9, 15, 7, 0, time.UTC),
		},
		{
			name:  "rfc3339 with offset",
			input: `"2026-08-30T09:15:07+02:00"`,
			want:  time.Date(2026, 8, 30, 9, 15, 7, 0, time.FixedZone("", 2*3600)),
		},
		{
			name:  "rfc3339 zulu",
			input: `"2026-08-30T09:15:07Z"`,
			want:  time.Date(2026, 8, 30, 9, 15, 7, 0, time.UTC),
		},
		{
			name:  "empty string",
			input: `""`,
			want:  time.Time{},
		},
		{
			name:  "null",
			input: `null`,
			want:  time.Time{},
		},
		{
			name:    "garbage",
			input:   `"yesterday"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var at AuditTime
			err := at.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !at.Equal(tt.want) {
				t.Errorf("parsed %s, expected %s", at.Time, tt.want)
			}
		})
	}
}

func TestDecodeAuditData(t *testing.T) {
	record := RawAuditRecord{
		UserIDs:    "user1@domain.com",
		Operations: "FolderDeleted",
		AuditData: `{
			"CreationTime": "2026-08-30T09:15:07",
			"Workload": "SharePoint",
			"SiteUrl": "https://tenant.sharepoint.com/sites/Finance",
			"ObjectID": "https://tenant.sharepoint.com/sites/Finance/Shared Documents/Reports",
			"SourceFileName": "Reports"
		}`,
	}

	data, err := DecodeAuditData(&record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.Workload != WorkloadSharePoint {
		t.Errorf("workload: got %q", data.Workload)
	}
	if data.SiteURL != "https://tenant.sharepoint.com/sites/Finance" {
		t.Errorf("site url: got %q", data.SiteURL)
	}
	if data.SourceFileName != "Reports" {
		t.Errorf("source file name: got %q", data.SourceFileName)
	}
	want := time.Date(2026, 8, 30, 9, 15, 7, 0, time.UTC)
	if !data.CreationTime.Equal(want) {
		t.Errorf("creation time: got %s", data.CreationTime.Time)
	}
}

func TestDecodeAuditDataMalformed(t *testing.T) {
	record := RawAuditRecord{AuditData: `{"Workload": `}
	if _, err := DecodeAuditData(&record); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRawAuditRecordUnmarshal(t *testing.T) {
	// Upstream uses "UserIds" with a lowercase d.
	payload := `{"UserIds": "user1@domain.com", "Operations": "FolderMoved", "AuditData": "{}"}`
	var record RawAuditRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.UserIDs != "user1@domain.com" {
		t.Errorf("user ids: got %q", record.UserIDs)
	}
	if record.Operations != "FolderMoved" {
		t.Errorf("operations: got %q", record.Operations)
	}
}

func TestIsSystemPrincipal(t *testing.T) {
	tests := []struct {
		user string
		want bool
	}{
		{"app@sharepoint", true},
		{`SHAREPOINT\system`, true},
		{"user1@domain.com", false},
		{"App@SharePoint", false}, // exact match only
		{"", false},
	}

	for _, tt := range tests {
		if got := IsSystemPrincipal(tt.user); got != tt.want {
			t.Errorf("IsSystemPrincipal(%q) = %v, expected %v", tt.user, got, tt.want)
		}
	}
}

func TestWorkloadScopeMatches(t *testing.T) {
	tests := []struct {
		scope    WorkloadScope
		workload Workload
		want     bool
	}{
		{ScopeAll, WorkloadSharePoint, true},
		{ScopeAll, WorkloadOneDrive, true},
		{ScopeSharePointOnly, WorkloadSharePoint, true},
		{ScopeSharePointOnly, WorkloadOneDrive, false},
		{ScopeOneDriveOnly, WorkloadOneDrive, true},
		{ScopeOneDriveOnly, WorkloadSharePoint, false},
		// Unknown scopes behave as All.
		{WorkloadScope(""), WorkloadSharePoint, true},
	}

	for _, tt := range tests {
		if got := tt.scope.Matches(tt.workload); got != tt.want {
			t.Errorf("%s.Matches(%s) = %v, expected %v", tt.scope, tt.workload, got, tt.want)
		}
	}
}
