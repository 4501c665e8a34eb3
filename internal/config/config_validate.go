// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/RapidScripter/sharepoint-folder-activity-monitor/internal/validation"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}

	// Tag-based field validation (ranges, email, SPO URL pattern).
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	return nil
}

// validateSource validates the audit endpoint settings.
func (c *Config) validateSource() error {
	if c.Source.URL == "" {
		return fmt.Errorf("AUDIT_SOURCE_URL is required")
	}
	parsed, err := url.Parse(c.Source.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("AUDIT_SOURCE_URL is invalid: %q is not an http(s) URL", c.Source.URL)
	}
	if c.Source.Token == "" {
		return fmt.Errorf("AUDIT_SOURCE_TOKEN is required")
	}
	return nil
}

// validateRun validates the range and output settings.
func (c *Config) validateRun() error {
	start, end, err := c.Run.DateRange(time.Now())
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("end_date %s precedes start_date %s", c.Run.EndDate, c.Run.StartDate)
	}

	info, err := os.Stat(c.Run.OutputPath)
	if err != nil {
		return fmt.Errorf("output_path %q is not accessible: %w", c.Run.OutputPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output_path %q is not a directory", c.Run.OutputPath)
	}
	return nil
}

// validateFilter validates the predicate settings.
func (c *Config) validateFilter() error {
	if c.Filter.SharePointOnline && c.Filter.OneDrive {
		return fmt.Errorf("sharepoint_online and onedrive are mutually exclusive")
	}
	if c.Filter.ImportSitesCSV != "" {
		if _, err := os.Stat(c.Filter.ImportSitesCSV); err != nil {
			return fmt.Errorf("import_sites_csv %q is not accessible: %w", c.Filter.ImportSitesCSV, err)
		}
	}
	return nil
}
