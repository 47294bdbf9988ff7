// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"testing"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
)

// =============================================================================
// Intent Rule Tests
// =============================================================================

func TestAnalyze_IntentRules(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		query    string
		intent   Intent
		category index.Category
		entity   string
	}{
		{"Kdo jsi?", IntentSystem, "", ""},
		{"Co umíš?", IntentSystem, "", ""},
		{"Kolik firem je v systému?", IntentCount, index.CategoryCompany, ""},
		{"Kolik máme kontaktů?", IntentCount, index.CategoryContact, ""},
		{"Vypiš všechny firmy", IntentListAll, index.CategoryCompany, ""},
		{"Zobraz seznam aktivit", IntentListAll, index.CategoryActivity, ""},
		{"Najdi kontakt Jana Nováková", IntentSearchSpecific, index.CategoryContact, "Jana Nováková"},
		{"Vyhledej něco v obchodech", IntentSearchSpecific, index.CategoryDeal, ""},
		{"Řekni mi více o firmě Alza.cz", IntentGetDetails, index.CategoryCompany, "Alza.cz"},
		{"Ukaž mi detail kontaktu Petr Svoboda", IntentGetDetails, index.CategoryContact, "Petr Svoboda"},
		{"Jaké aktivity souvisí s firmou Alza.cz?", IntentFindRelated, index.CategoryCompany, "Alza.cz"},
		{"Máme konkrétní firmy?", IntentListAll, index.CategoryCompany, ""},
		{"Dobrý den", IntentGeneral, "", ""},
	}

	for _, tc := range cases {
		a := c.Analyze(tc.query)
		if a.Intent != tc.intent {
			t.Errorf("%q: intent = %s, want %s", tc.query, a.Intent, tc.intent)
		}
		if a.Category != tc.category {
			t.Errorf("%q: category = %q, want %q", tc.query, a.Category, tc.category)
		}
		if a.EntityName != tc.entity {
			t.Errorf("%q: entity = %q, want %q", tc.query, a.EntityName, tc.entity)
		}
	}
}

func TestAnalyze_NameOverridesAggregates(t *testing.T) {
	c := NewClassifier()

	// A concrete proper name forces search even when a listing keyword is
	// present.
	a := c.Analyze("Vypiš firmu Alza")
	if a.Intent != IntentSearchSpecific {
		t.Errorf("intent = %s, want search_specific", a.Intent)
	}
	if a.EntityName != "Alza" {
		t.Errorf("entity = %q, want Alza", a.EntityName)
	}
}

func TestAnalyze_CountQueryNotSystem(t *testing.T) {
	// "v systému" must not trip the system-question keywords.
	a := NewClassifier().Analyze("Kolik firem je v systému?")
	if a.Intent != IntentCount {
		t.Errorf("intent = %s, want count", a.Intent)
	}
}

func TestAnalyze_GeneralKeepsExtractedName(t *testing.T) {
	// The generic "o X" pattern extracts a name but names an entity
	// category nowhere, so the query stays general with the name attached.
	a := NewClassifier().Analyze("Co víš o Alze?")
	if a.Intent != IntentGeneral {
		t.Errorf("intent = %s, want general", a.Intent)
	}
	if a.EntityName != "Alze" {
		t.Errorf("entity = %q, want Alze", a.EntityName)
	}
}

func TestAnalyze_TwoCategoryMentionsWithName(t *testing.T) {
	a := NewClassifier().Analyze("Které obchody patří firmě Alfa Beta?")
	if a.Intent != IntentFindRelated {
		t.Errorf("intent = %s, want find_related", a.Intent)
	}
	if a.EntityName != "Alfa Beta" {
		t.Errorf("entity = %q, want 'Alfa Beta'", a.EntityName)
	}
}

// =============================================================================
// Resolver Chain Tests
// =============================================================================

func TestSynonymResolver_OverridesStatic(t *testing.T) {
	// "kontakt" statically resolves to contacts; a configured synonym
	// installed ahead of the static resolver wins.
	syn := NewSynonymResolver(map[index.Category][]string{
		index.CategoryDeal: {"kontakt"},
	})
	c := NewClassifier(syn)

	a := c.Analyze("Kolik kontaktů máme?")
	if a.Category != index.CategoryDeal {
		t.Errorf("category = %q, want deal (synonym override)", a.Category)
	}
}

func TestSynonymResolver_FallsThroughToStatic(t *testing.T) {
	syn := NewSynonymResolver(map[index.Category][]string{
		index.CategoryDeal: {"kšeft"},
	})
	c := NewClassifier(syn)

	a := c.Analyze("Kolik firem máme?")
	if a.Category != index.CategoryCompany {
		t.Errorf("category = %q, want company via static fallback", a.Category)
	}
}

func TestSynonymResolver_LowercasesConfiguredWords(t *testing.T) {
	syn := NewSynonymResolver(map[index.Category][]string{
		index.CategoryCompany: {"  Klient  "},
	})
	if cat, ok := syn.Resolve("seznam klientů"); !ok || cat != index.CategoryCompany {
		t.Errorf("Resolve = (%q, %v), want (company, true)", cat, ok)
	}
}

// =============================================================================
// Name Extraction Tests
// =============================================================================

func TestExtractEntityName(t *testing.T) {
	cases := []struct {
		query       string
		name        string
		viaCategory bool
	}{
		{"Najdi firmu Alza.cz", "Alza.cz", true},
		{"Najdi kontakt Šárka Dvořáková", "Šárka Dvořáková", true},
		{"Informace o společnosti T-Mobile", "T-Mobile", true},
		{"Zakázka Velká hala", "Velká", true},
		{"Co víš o Praze?", "Praze", false},
		{"najdi firmu alza", "", false},
		{"Vypiš všechny firmy", "", false},
	}
	for _, tc := range cases {
		name, via := extractEntityName(tc.query)
		if name != tc.name || via != tc.viaCategory {
			t.Errorf("extractEntityName(%q) = (%q, %v), want (%q, %v)",
				tc.query, name, via, tc.name, tc.viaCategory)
		}
	}
}

// =============================================================================
// Wire Name Tests
// =============================================================================

func TestIntentString(t *testing.T) {
	cases := map[Intent]string{
		IntentGeneral:        "general",
		IntentSystem:         "system",
		IntentCount:          "count",
		IntentListAll:        "list_all",
		IntentSearchSpecific: "search_specific",
		IntentGetDetails:     "get_details",
		IntentFindRelated:    "find_related",
		IntentError:          "error",
		Intent(99):           "general",
	}
	for intent, want := range cases {
		if got := intent.String(); got != want {
			t.Errorf("Intent(%d).String() = %q, want %q", intent, got, want)
		}
	}
}
