// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package models defines the audit record, filter criteria, and report row
// types shared across the retrieval and enrichment pipeline.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Workload identifies the product surface an activity occurred in.
type Workload string

const (
	WorkloadSharePoint Workload = "SharePoint"
	WorkloadOneDrive   Workload = "OneDrive"
)

// RiskScore is a coarse classification derived from the operation type,
// used to prioritize review of the final report.
type RiskScore string

const (
	RiskLow    RiskScore = "Low"
	RiskMedium RiskScore = "Medium"
	RiskHigh   RiskScore = "High"
)

// WorkloadScope restricts which workloads are included in the report.
type WorkloadScope string

const (
	ScopeAll            WorkloadScope = "All"
	ScopeSharePointOnly WorkloadScope = "SharePointOnly"
	ScopeOneDriveOnly   WorkloadScope = "OneDriveOnly"
)

// Matches reports whether the decoded workload of a record falls inside
// the scope.
func (s WorkloadScope) Matches(w Workload) bool {
	switch s {
	case ScopeSharePointOnly:
		return w == WorkloadSharePoint
	case ScopeOneDriveOnly:
		return w == WorkloadOneDrive
	default:
		return true
	}
}

// RawAuditRecord is the opaque payload returned by the audit source.
// It is immutable once retrieved; the AuditData field carries the
// structured activity detail as a JSON string.
type RawAuditRecord struct {
	UserIDs    string `json:"UserIds"`
	Operations string `json:"Operations"`
	AuditData  string `json:"AuditData"`
}

// auditTimeLayout is the zone-less timestamp format used inside audit
// detail payloads. Values are UTC.
const auditTimeLayout = "2006-01-02T15:04:05"

// AuditTime handles the upstream's zone-less timestamp encoding while
// still accepting RFC 3339 values.
type AuditTime struct {
	time.Time
}

// UnmarshalJSON parses either the zone-less audit layout (interpreted as
// UTC) or a full RFC 3339 timestamp.
func (t *AuditTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(auditTimeLayout, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse audit timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// AuditData is the decoded structure of RawAuditRecord.AuditData.
type AuditData struct {
	CreationTime   AuditTime `json:"CreationTime"`
	Workload       Workload  `json:"Workload"`
	SiteURL        string    `json:"SiteUrl"`
	ObjectID       string    `json:"ObjectID"`
	SourceFileName string    `json:"SourceFileName"`
}

// DecodeAuditData parses the record's detail payload. A decode failure is
// recoverable at the batch level: the caller drops the record and continues.
func DecodeAuditData(r *RawAuditRecord) (*AuditData, error) {
	var data AuditData
	if err := json.Unmarshal([]byte(r.AuditData), &data); err != nil {
		return nil, fmt.Errorf("decode audit detail: %w", err)
	}
	return &data, nil
}

// systemPrincipals are service identities excluded from the report unless
// system events are explicitly requested.
var systemPrincipals = map[string]struct{}{
	"app@sharepoint":    {},
	`SHAREPOINT\system`: {},
}

// IsSystemPrincipal reports whether the user identity belongs to a known
// SharePoint service principal.
func IsSystemPrincipal(userIDs string) bool {
	_, ok := systemPrincipals[userIDs]
	return ok
}

// FilterCriteria carries the caller-supplied inclusion predicates.
// It is immutable for the duration of a run and safe for concurrent reads.
type FilterCriteria struct {
	IncludeSystemEvents bool
	PerformedBy         string
	WorkloadScope       WorkloadScope
	SiteURL             string
	SiteAllowList       map[string]struct{}
}

// ReportRow is a single accepted, enriched record. Instances are produced
// once per accepted record and never mutated after creation.
type ReportRow struct {
	ActivityTime time.Time
	Activity     string
	FolderName   string
	PerformedBy  string
	FolderURL    string
	SiteURL      string
	Workload     Workload
	RiskScore    RiskScore
	DurationDays float64
	RawDetail    string
}
