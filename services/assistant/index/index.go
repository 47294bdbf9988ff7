// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index builds per-category search indexes over raw CRM records.
//
// An index is an immutable snapshot: rebuilds produce a fresh Snapshot that
// the owner swaps in atomically, so readers always see either the old
// complete index or the new complete index, never a partial one.
package index

import (
	"strings"
	"time"

	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// Category is one of the four fixed record types. The zero value means
// "no category".
type Category string

const (
	CategoryCompany  Category = "company"
	CategoryContact  Category = "contact"
	CategoryActivity Category = "activity"
	CategoryDeal     Category = "deal"
)

// AllCategories returns the categories in their fixed evaluation order.
func AllCategories() []Category {
	return []Category{CategoryCompany, CategoryContact, CategoryActivity, CategoryDeal}
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCompany, CategoryContact, CategoryActivity, CategoryDeal:
		return true
	}
	return false
}

// searchFields lists, per category, the fields concatenated into an entry's
// searchable text, in priority order. Czech and English field names both
// appear because the upstream CRM mixes them freely.
var searchFields = map[Category][]string{
	CategoryCompany:  {"name", "nazev", "company", "title", "email", "city", "mesto", "street", "ulice"},
	CategoryContact:  {"name", "jmeno", "prijmeni", "email", "telefon", "phone", "zamestnavatel", "firma", "company"},
	CategoryActivity: {"name", "nazev", "subject", "predmet", "title", "popis", "description", "firma", "company"},
	CategoryDeal:     {"name", "nazev", "title", "firma", "company"},
}

// nameFields lists, per category, the name-bearing fields in canonical-first
// order. The first non-empty extracted value is the record's canonical name.
var nameFields = map[Category][]string{
	CategoryCompany:  {"name", "nazev", "company", "title"},
	CategoryContact:  {"name", "jmeno", "prijmeni", "email"},
	CategoryActivity: {"name", "nazev", "subject", "predmet", "title"},
	CategoryDeal:     {"name", "nazev", "title"},
}

// importantFields lists, per category, the fields whose matches earn the
// text scorer's important-field weight.
var importantFields = map[Category][]string{
	CategoryCompany:  {"name", "nazev", "email"},
	CategoryContact:  {"name", "jmeno", "prijmeni", "email"},
	CategoryActivity: {"name", "nazev", "subject", "predmet"},
	CategoryDeal:     {"name", "nazev", "title"},
}

// Entry is one indexed record: the record itself, its lowercase searchable
// text, the lowercase text of its important fields, and its extracted name
// variants (first entry canonical).
type Entry struct {
	Record        store.Record
	SearchText    string
	ImportantText string
	Names         []string
}

// CanonicalName returns the entry's display name, or "" when the record
// yielded no names.
func (e *Entry) CanonicalName() string {
	if len(e.Names) == 0 {
		return ""
	}
	return e.Names[0]
}

// Stats summarizes a built snapshot.
type Stats struct {
	// ByCategory maps each category to its entry count.
	ByCategory map[Category]int

	// TotalEntries is the entry count across all categories.
	TotalEntries int

	// BuiltAt is when the snapshot build completed.
	BuiltAt time.Time
}

// Snapshot is an immutable per-category index built from one TableSet.
//
// Thread Safety: Safe for concurrent use; all state is read-only after Build
// returns.
type Snapshot struct {
	entries map[Category][]Entry
	builtAt time.Time
}

// Entries returns the entry list for one category. The returned slice must
// be treated as read-only.
func (s *Snapshot) Entries(cat Category) []Entry {
	if s == nil {
		return nil
	}
	return s.entries[cat]
}

// EntriesFor returns the entries for cat, or every category's entries
// concatenated in fixed category order when cat is empty.
func (s *Snapshot) EntriesFor(cat Category) []Entry {
	if s == nil {
		return nil
	}
	if cat != "" {
		return s.entries[cat]
	}
	var all []Entry
	for _, c := range AllCategories() {
		all = append(all, s.entries[c]...)
	}
	return all
}

// Empty reports whether the snapshot holds no entries at all.
func (s *Snapshot) Empty() bool {
	if s == nil {
		return true
	}
	for _, entries := range s.entries {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// Stats returns entry counts per category.
func (s *Snapshot) Stats() Stats {
	st := Stats{ByCategory: make(map[Category]int, 4)}
	if s == nil {
		return st
	}
	st.BuiltAt = s.builtAt
	for _, c := range AllCategories() {
		n := len(s.entries[c])
		st.ByCategory[c] = n
		st.TotalEntries += n
	}
	return st
}

// Builder constructs snapshots from a category→table binding.
//
// Description:
//
//	Each category indexes only the records of its bound table, so a record
//	is never duplicated across categories. Building is idempotent: the same
//	TableSet always yields entries with identical SearchText and Names in
//	identical order.
//
// Thread Safety: Safe for concurrent use; the binding map is read-only
// after construction.
type Builder struct {
	bindings map[Category]string
}

// NewBuilder creates a Builder for the given category→table-identifier
// binding. Categories absent from the binding simply index nothing.
func NewBuilder(bindings map[Category]string) *Builder {
	owned := make(map[Category]string, len(bindings))
	for cat, id := range bindings {
		owned[cat] = id
	}
	return &Builder{bindings: owned}
}

// TableFor returns the table identifier bound to cat, or "".
func (b *Builder) TableFor(cat Category) string {
	return b.bindings[cat]
}

// Build indexes every bound table into a fresh Snapshot.
func (b *Builder) Build(tables store.TableSet) *Snapshot {
	snap := &Snapshot{
		entries: make(map[Category][]Entry, 4),
		builtAt: time.Now(),
	}
	for _, cat := range AllCategories() {
		tableID, bound := b.bindings[cat]
		if !bound {
			continue
		}
		records := tables.RecordsFor(tableID)
		entries := make([]Entry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, buildEntry(cat, rec))
		}
		snap.entries[cat] = entries
	}
	return snap
}

// buildEntry precomputes one record's searchable text and name variants.
func buildEntry(cat Category, rec store.Record) Entry {
	return Entry{
		Record:        rec,
		SearchText:    joinFieldValues(rec, searchFields[cat]),
		ImportantText: joinFieldValues(rec, importantFields[cat]),
		Names:         ExtractAllNames(cat, rec),
	}
}

// joinFieldValues lowercases and space-joins the non-empty display values of
// the listed fields.
func joinFieldValues(rec store.Record, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := rec.Value(f); v != "" {
			parts = append(parts, strings.ToLower(v))
		}
	}
	return strings.Join(parts, " ")
}

// defaultNameFields is used when the category is unknown (index-free
// fallback hits carry no category).
var defaultNameFields = []string{"name", "nazev", "jmeno", "prijmeni", "company", "title", "subject"}

// ExtractAllNames pulls a record's display-name variants for one category.
//
// Description:
//
//	Values come from the category's fixed name-field list, empty values
//	filtered out. For contacts, a synthesized "first last" full name is
//	inserted ahead of the individual parts whenever both parts are present,
//	so the full name becomes the canonical one. The first returned name is
//	the canonical name used for display and cross-reference lookups.
func ExtractAllNames(cat Category, rec store.Record) []string {
	var names []string
	seen := make(map[string]struct{})

	appendName := func(v string) {
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		names = append(names, v)
	}

	if cat == CategoryContact || !cat.Valid() {
		first := rec.Value("jmeno")
		last := rec.Value("prijmeni")
		if first != "" && last != "" {
			appendName(first + " " + last)
		}
	}
	fields := nameFields[cat]
	if fields == nil {
		fields = defaultNameFields
	}
	for _, f := range fields {
		appendName(rec.Value(f))
	}
	return names
}

// CanonicalName returns the first extracted name for a record, or "".
func CanonicalName(cat Category, rec store.Record) string {
	names := ExtractAllNames(cat, rec)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
