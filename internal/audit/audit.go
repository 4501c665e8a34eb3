// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package audit defines the boundary to the tenant's paged, rate-limited
// audit-log query interface and provides the HTTP client plus circuit
// breaker wrapper used to reach it.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// PageSizeCap is the maximum record count the audit source returns per
// call. A batch of exactly this size means the queried window may hold
// more data than one page.
const PageSizeCap = 5000

// SessionCommandLargeSet requests server-side session continuity so that
// repeated queries for the same window page through the full result set.
const SessionCommandLargeSet = "ReturnLargeSet"

// ErrThrottled signals an upstream rate-limit rejection. It is the only
// error class the retry policy recovers from.
var ErrThrottled = errors.New("audit source throttled the request")

// DefaultOperations is the folder-activity operation set queried when the
// caller does not narrow it.
var DefaultOperations = []string{
	"FolderCreated",
	"FolderModified",
	"FolderMoved",
	"FolderRenamed",
	"FolderCopied",
	"FolderDeleted",
	"FolderRecycled",
	"FolderDeletedFirstStageRecycleBin",
	"FolderDeletedSecondStageRecycleBin",
	"FolderRestored",
}

// Query describes one bounded audit-log request. SessionID must remain
// constant across all calls within one run for pagination continuity.
type Query struct {
	StartTime      time.Time
	EndTime        time.Time
	Operations     []string
	SessionID      string
	SessionCommand string
	ResultSize     int
}

// Source is the paged audit-log query interface. Implementations return a
// batch of size [0, ResultSize] per call; a full batch implies the window
// may contain further pages reachable by re-issuing the same query.
type Source interface {
	// Search retrieves one page of audit records for the query's window.
	Search(ctx context.Context, q Query) ([]models.RawAuditRecord, error)

	// Disconnect tears down the upstream pagination session. Best effort;
	// called once at run end regardless of outcome.
	Disconnect(ctx context.Context, sessionID string) error
}
