// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package pipeline

import (
	"strings"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/models"
)

// ClassifyRisk maps an operation name to a risk score by substring match,
// not exact equality. Precedence: Deleted/Recycled beats Modified/Renamed
// beats the Low default, so an operation matching both categories always
// classifies High.
func ClassifyRisk(operation string) models.RiskScore {
	op := strings.ToLower(operation)
	switch {
	case strings.Contains(op, "deleted") || strings.Contains(op, "recycled"):
		return models.RiskHigh
	case strings.Contains(op, "modified") || strings.Contains(op, "renamed"):
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
