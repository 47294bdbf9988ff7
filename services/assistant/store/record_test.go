// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import "testing"

// =============================================================================
// ActualRecords Tests
// =============================================================================

func sampleRecords() []any {
	return []any{
		map[string]any{"name": "Alza.cz"},
		map[string]any{"name": "Mall.cz"},
	}
}

func TestActualRecords_AllShapesEquivalent(t *testing.T) {
	payloads := map[string]any{
		"bare":    sampleRecords(),
		"items":   map[string]any{"items": sampleRecords()},
		"data":    map[string]any{"data": sampleRecords()},
		"records": map[string]any{"records": sampleRecords()},
	}

	for shape, payload := range payloads {
		records := ActualRecords(payload)
		if len(records) != 2 {
			t.Errorf("shape %s: expected 2 records, got %d", shape, len(records))
			continue
		}
		if records[0].Value("name") != "Alza.cz" || records[1].Value("name") != "Mall.cz" {
			t.Errorf("shape %s: record order or content differs: %v", shape, records)
		}
	}
}

func TestActualRecords_ShapePriority(t *testing.T) {
	// items wins over data when both are present.
	payload := map[string]any{
		"items": []any{map[string]any{"name": "from-items"}},
		"data":  []any{map[string]any{"name": "from-data"}},
	}
	records := ActualRecords(payload)
	if len(records) != 1 || records[0].Value("name") != "from-items" {
		t.Errorf("expected items to win, got %v", records)
	}
}

func TestActualRecords_UnrecognizedShape(t *testing.T) {
	for _, payload := range []any{nil, "text", 42, map[string]any{"rows": []any{}}} {
		if records := ActualRecords(payload); len(records) != 0 {
			t.Errorf("payload %v: expected empty sequence, got %d records", payload, len(records))
		}
	}
}

func TestActualRecords_SkipsNonObjectElements(t *testing.T) {
	records := ActualRecords([]any{map[string]any{"name": "A"}, "junk", 7})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

// =============================================================================
// Record Field Tests
// =============================================================================

func TestFields_UnwrapsReferenceWrapper(t *testing.T) {
	rec := Record{"fields": map[string]any{"name": "Alza.cz"}}
	if got := rec.Value("name"); got != "Alza.cz" {
		t.Errorf("expected wrapped field to resolve, got %q", got)
	}
}

func TestFields_FlatRecordUnchanged(t *testing.T) {
	rec := Record{"name": "Alza.cz"}
	if got := rec.Value("name"); got != "Alza.cz" {
		t.Errorf("expected flat field to resolve, got %q", got)
	}
}

// =============================================================================
// DisplayValue Tests
// =============================================================================

func TestDisplayValue_MailtoStripped(t *testing.T) {
	if got := DisplayValue("mailto:jana@example.com"); got != "jana@example.com" {
		t.Errorf("expected mailto prefix stripped, got %q", got)
	}
}

func TestDisplayValue_ArrayJoined(t *testing.T) {
	got := DisplayValue([]any{"Praha", "Brno"})
	if got != "Praha, Brno" {
		t.Errorf("expected comma join, got %q", got)
	}
}

func TestDisplayValue_NestedFieldsResolved(t *testing.T) {
	ref := map[string]any{"fields": map[string]any{"name": "Alza.cz"}}
	if got := DisplayValue(ref); got != "Alza.cz" {
		t.Errorf("expected nested fields name, got %q", got)
	}
}

func TestDisplayValue_Numbers(t *testing.T) {
	if got := DisplayValue(float64(42)); got != "42" {
		t.Errorf("expected integer rendering, got %q", got)
	}
	if got := DisplayValue(3.5); got != "3.5" {
		t.Errorf("expected 3.5, got %q", got)
	}
}

func TestDisplayValue_NilEmpty(t *testing.T) {
	if got := DisplayValue(nil); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}
}

// =============================================================================
// TableSet Tests
// =============================================================================

func TestTableSet_RecordsForMissingTable(t *testing.T) {
	ts := TableSet{}
	if records := ts.RecordsFor("nope"); len(records) != 0 {
		t.Errorf("expected empty sequence for missing table, got %d", len(records))
	}
}

func TestTableSet_IDsSorted(t *testing.T) {
	ts := TableSet{
		"b": &Table{ID: "b"},
		"a": &Table{ID: "a"},
		"c": &Table{ID: "c"},
	}
	ids := ts.IDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}
