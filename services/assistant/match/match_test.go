// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package match

import (
	"testing"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// =============================================================================
// LevenshteinDistance Tests
// =============================================================================

func TestLevenshteinDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"alza", "alza", 0},
		{"alza", "alzo", 1},
		{"nováková", "novakova", 2},
	}
	for _, c := range cases {
		if got := LevenshteinDistance(c.a, c.b); got != c.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSimilarity_EmptyStrings(t *testing.T) {
	if got := Similarity("", ""); got != 1.0 {
		t.Errorf("empty-vs-empty similarity = %f, want 1.0", got)
	}
}

// =============================================================================
// ScoreNames Tier Tests
// =============================================================================

func TestScoreNames_ExactMatch(t *testing.T) {
	if got := ScoreNames([]string{"Alza.cz"}, "alza.cz"); got != 100 {
		t.Errorf("exact case-insensitive match = %d, want 100", got)
	}
}

func TestScoreNames_SubstringFormula(t *testing.T) {
	// len("Jana Nováková") = 13, len("Jana") = 4: 80 - 2*9 = 62.
	if got := ScoreNames([]string{"Jana Nováková"}, "Jana"); got != 62 {
		t.Errorf("substring score = %d, want 62", got)
	}
}

func TestScoreNames_SubstringFloor(t *testing.T) {
	// Length difference 20 would give 80-40=40; floor is 50.
	name := "Velkoobchodní sklady Morava"
	if got := ScoreNames([]string{name}, "sklady"); got != 50 {
		t.Errorf("substring floor = %d, want 50", got)
	}
}

func TestScoreNames_ReverseContains(t *testing.T) {
	if got := ScoreNames([]string{"Alza"}, "firma Alza praha"); got != 40 {
		t.Errorf("query-contains-name = %d, want 40", got)
	}
}

func TestScoreNames_ReverseContainsRejectsShortNames(t *testing.T) {
	// Two-rune names embed in too many queries; the tier requires > 2.
	if got := ScoreNames([]string{"AB"}, "prodej AB materiálu"); got != 0 {
		t.Errorf("short name reverse-contains = %d, want 0", got)
	}
}

func TestScoreNames_FuzzyTier(t *testing.T) {
	// "novakova" vs "nováková": distance 2 over 8 runes, similarity 0.75.
	if got := ScoreNames([]string{"Nováková"}, "novakova"); got != 30 {
		t.Errorf("fuzzy score = %d, want 30", got)
	}
}

func TestScoreNames_NoMatch(t *testing.T) {
	if got := ScoreNames([]string{"Alza.cz"}, "xyzzy"); got != 0 {
		t.Errorf("unrelated query = %d, want 0", got)
	}
}

func TestScoreNames_TierOrdering(t *testing.T) {
	exact := ScoreNames([]string{"Alza"}, "alza")
	substr := ScoreNames([]string{"Alza Holding"}, "alza")
	fuzzy := ScoreNames([]string{"Alzo"}, "alza")
	if !(exact > substr && substr > fuzzy && fuzzy > 0) {
		t.Errorf("tier ordering violated: exact=%d substr=%d fuzzy=%d", exact, substr, fuzzy)
	}
}

func TestScoreNames_MaxAcrossNames(t *testing.T) {
	// The exact-matching variant must win even when listed last.
	if got := ScoreNames([]string{"Jana Nováková", "Jana"}, "jana"); got != 100 {
		t.Errorf("max across names = %d, want 100", got)
	}
}

// =============================================================================
// FindByName Tests
// =============================================================================

func findByNameSnapshot() *index.Snapshot {
	builder := index.NewBuilder(map[index.Category]string{
		index.CategoryCompany: "companies",
	})
	return builder.Build(store.TableSet{
		"companies": &store.Table{ID: "companies", Data: []any{
			map[string]any{"name": "Alza Holding"},
			map[string]any{"name": "Alza.cz"},
			map[string]any{"name": "Alza"},
			map[string]any{"name": "Mall.cz"},
		}},
	})
}

func TestFindByName_SortedNonIncreasing(t *testing.T) {
	snap := findByNameSnapshot()
	records := FindByName(snap, index.CategoryCompany, "alza")

	if len(records) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(records))
	}
	// Exact match first, then substring matches by degrading length diff.
	if records[0].Value("name") != "Alza" {
		t.Errorf("expected exact match first, got %q", records[0].Value("name"))
	}
}

func TestFindByName_TiesPreserveOriginalOrder(t *testing.T) {
	builder := index.NewBuilder(map[index.Category]string{
		index.CategoryCompany: "companies",
	})
	snap := builder.Build(store.TableSet{
		"companies": &store.Table{ID: "companies", Data: []any{
			map[string]any{"name": "Alza One"},
			map[string]any{"name": "Alza Two"},
		}},
	})

	records := FindByName(snap, index.CategoryCompany, "alza")
	if len(records) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(records))
	}
	if records[0].Value("name") != "Alza One" || records[1].Value("name") != "Alza Two" {
		t.Errorf("equal scores must preserve index order, got %q then %q",
			records[0].Value("name"), records[1].Value("name"))
	}
}

func TestFindByName_ExcludesZeroScores(t *testing.T) {
	snap := findByNameSnapshot()
	records := FindByName(snap, index.CategoryCompany, "neexistující")
	if len(records) != 0 {
		t.Errorf("expected no matches, got %d", len(records))
	}
}

func TestFindByName_AllCategoriesWhenUnscoped(t *testing.T) {
	builder := index.NewBuilder(map[index.Category]string{
		index.CategoryCompany: "companies",
		index.CategoryContact: "contacts",
	})
	snap := builder.Build(store.TableSet{
		"companies": &store.Table{ID: "companies", Data: []any{
			map[string]any{"name": "Alza.cz"},
		}},
		"contacts": &store.Table{ID: "contacts", Data: []any{
			map[string]any{"jmeno": "Alza", "prijmeni": "Testová"},
		}},
	})

	records := FindByName(snap, "", "alza")
	if len(records) != 2 {
		t.Errorf("expected matches from both categories, got %d", len(records))
	}
}
