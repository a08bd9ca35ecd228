package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/passkeep/passkeep/pkg/syncer"
	"github.com/passkeep/passkeep/pkg/vault"
)

func TestSplitTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "work", []string{"work"}},
		{"multiple", "work,personal", []string{"work", "personal"}},
		{"whitespace", " work , personal ", []string{"work", "personal"}},
		{"empty segments", "work,,personal,", []string{"work", "personal"}},
		{"only commas", ",,,", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitTags(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitTags(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIndexTitles(t *testing.T) {
	records := []*vault.Record{
		{ID: "1", Title: "GitHub"},
		{ID: "2", Title: "GitLab"},
	}
	titles, byTitle := indexTitles(records)
	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(titles))
	}
	if byTitle["GitHub"].ID != "1" || byTitle["GitLab"].ID != "2" {
		t.Error("title index maps to wrong records")
	}
}

func TestDerefRecords(t *testing.T) {
	records := []*vault.Record{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
	}
	out := derefRecords(records)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	out[0].Title = "changed"
	if records[0].Title != "A" {
		t.Error("dereferenced records share backing storage with the originals")
	}
}

func TestDerefRecordsEmpty(t *testing.T) {
	if out := derefRecords(nil); len(out) != 0 {
		t.Errorf("expected empty slice, got %d records", len(out))
	}
}

func TestFormatPlanSummary(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	local := []vault.Record{
		{ID: "same", Title: "Same", UpdatedAt: base},
		{ID: "conflict", Title: "Local", UpdatedAt: base.Add(time.Hour)},
		{ID: "local-only", Title: "Push Me", UpdatedAt: base},
	}
	remote := []vault.Record{
		{ID: "same", Title: "Same", UpdatedAt: base},
		{ID: "conflict", Title: "Remote", UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "remote-only", Title: "Pull Me", UpdatedAt: base},
	}

	got := formatPlanSummary(syncer.BuildPlan(local, remote))
	want := "Would pull 1, push 1, 1 conflicts, 1 unchanged"
	if got != want {
		t.Errorf("formatPlanSummary() = %q, want %q", got, want)
	}
}
