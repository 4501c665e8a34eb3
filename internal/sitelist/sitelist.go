// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

// Package sitelist loads the site allow-list used to restrict the report
// to a caller-supplied set of site collections.
package sitelist

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// siteURLColumn is the required header of the import file.
const siteURLColumn = "SiteUrl"

// Load reads a CSV file with a SiteUrl column and returns the set of
// non-empty site URLs it lists. Header matching is case-insensitive;
// duplicate URLs collapse into one entry.
func Load(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open site list: %w", err)
	}
	defer file.Close()

	return parse(file)
}

func parse(r io.Reader) (map[string]struct{}, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("site list is empty, expected a %s column", siteURLColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read site list header: %w", err)
	}

	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), siteURLColumn) {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, fmt.Errorf("site list has no %s column (header: %s)", siteURLColumn, strings.Join(header, ", "))
	}

	sites := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read site list row: %w", err)
		}
		if col >= len(record) {
			continue
		}
		site := strings.TrimSpace(record[col])
		if site == "" {
			continue
		}
		sites[site] = struct{}{}
	}

	if len(sites) == 0 {
		return nil, fmt.Errorf("site list contains no site URLs")
	}
	return sites, nil
}
