package analyzer

import (
	"testing"
	"time"

	"github.com/passkeep/passkeep/pkg/vault"
)

func TestFindDuplicatesGroupsAndSorts(t *testing.T) {
	now := time.Now().UTC()
	records := []vault.Record{
		testRecord("alpha", "triple-use-secret", now),
		testRecord("bravo", "triple-use-secret", now),
		testRecord("charlie", "triple-use-secret", now),
		testRecord("delta", "pair-secret", now),
		testRecord("echo", "pair-secret", now),
		testRecord("foxtrot", "unique-secret", now),
	}

	groups, err := NewCalculator().FindDuplicates(records)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Count != 3 || groups[1].Count != 2 {
		t.Errorf("group counts = %d, %d, want 3, 2", groups[0].Count, groups[1].Count)
	}
	want := []string{"alpha", "bravo", "charlie"}
	for i, title := range want {
		if groups[0].Titles[i] != title {
			t.Errorf("groups[0].Titles = %v, want %v", groups[0].Titles, want)
			break
		}
	}
}

func TestFindDuplicatesNormalizes(t *testing.T) {
	now := time.Now().UTC()
	records := []vault.Record{
		// Composed e-acute versus "e" plus combining acute accent.
		testRecord("one", "café-secret", now),
		testRecord("two", "café-secret", now),
		testRecord("three", "  café-secret  ", now),
	}

	groups, err := NewCalculator().FindDuplicates(records)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 1 || groups[0].Count != 3 {
		t.Fatalf("groups = %+v, want one group of 3", groups)
	}
}

func TestFindDuplicatesIgnoresEmpty(t *testing.T) {
	now := time.Now().UTC()
	records := []vault.Record{
		testRecord("one", "", now),
		testRecord("two", "", now),
		testRecord("three", "   ", now),
	}

	groups, err := NewCalculator().FindDuplicates(records)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("groups = %+v, want none for empty passwords", groups)
	}
}

func TestFindDuplicatesSessionKeyIsStable(t *testing.T) {
	now := time.Now().UTC()
	records := []vault.Record{
		testRecord("one", "same-secret", now),
		testRecord("two", "same-secret", now),
	}

	calc := NewCalculator()
	first, err := calc.FindDuplicates(records)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	second, err := calc.FindDuplicates(records)
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("groups = %d, %d, want 1 each", len(first), len(second))
	}
}
