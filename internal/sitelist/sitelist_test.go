// SharePoint Folder Activity Monitor
// Copyright 2026 RapidScripter
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/RapidScripter/sharepoint-folder-activity-monitor

package sitelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{
			name:  "single column",
			input: "SiteUrl\nhttps://tenant.sharepoint.com/sites/Finance\nhttps://tenant.sharepoint.com/sites/HR\n",
			want: []string{
				"https://tenant.sharepoint.com/sites/Finance",
				"https://tenant.sharepoint.com/sites/HR",
			},
		},
		{
			name:  "column among others",
			input: "Title,SiteUrl,Owner\nFinance,https://tenant.sharepoint.com/sites/Finance,user1@domain.com\n",
			want:  []string{"https://tenant.sharepoint.com/sites/Finance"},
		},
		{
			name:  "case-insensitive header",
			input: "SITEURL\nhttps://tenant.sharepoint.com/sites/Finance\n",
			want:  []string{"https://tenant.sharepoint.com/sites/Finance"},
		},
		{
			name:  "duplicates collapse",
			input: "SiteUrl\nhttps://tenant.sharepoint.com/sites/Finance\nhttps://tenant.sharepoint.com/sites/Finance\n",
			want:  []string{"https://tenant.sharepoint.com/sites/Finance"},
		},
		{
			name:  "blank rows skipped",
			input: "SiteUrl\n\" \"\nhttps://tenant.sharepoint.com/sites/Finance\n",
			want:  []string{"https://tenant.sharepoint.com/sites/Finance"},
		},
		{
			name:  "short rows skipped",
			input: "Title,SiteUrl\nonly-title\nFinance,https://tenant.sharepoint.com/sites/Finance\n",
			want:  []string{"https://tenant.sharepoint.com/sites/Finance"},
		},
		{
			name:    "empty file",
			input:   "",
			wantErr: "empty",
		},
		{
			name:    "missing column",
			input:   "Title,Owner\nFinance,user1@domain.com\n",
			wantErr: "no SiteUrl column",
		},
		{
			name:    "header only",
			input:   "SiteUrl\n",
			wantErr: "no site URLs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := parse(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected an error")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sites) != len(tt.want) {
				t.Fatalf("sites: expected %d, got %d", len(tt.want), len(sites))
			}
			for _, url := range tt.want {
				if _, ok := sites[url]; !ok {
					t.Errorf("missing site %q", url)
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.csv")
	content := "SiteUrl\nhttps://tenant.sharepoint.com/sites/Finance\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	sites, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sites["https://tenant.sharepoint.com/sites/Finance"]; !ok {
		t.Errorf("missing site, got %v", sites)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("expected an error")
	}
}
