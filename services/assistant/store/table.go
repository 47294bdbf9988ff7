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

import "sort"

// Table pairs a human-readable label with a raw data payload in one of the
// four accepted shapes. A table identifier maps 1:1 to exactly one Table for
// the lifetime of a loaded dataset.
type Table struct {
	ID   string
	Name string
	Data any
}

// Records returns the table's record sequence via ActualRecords.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	return ActualRecords(t.Data)
}

// TableSet maps table identifier to Table. A TableSet is built wholesale on
// data refresh and never mutated afterward; readers may hold a reference
// across a refresh and keep seeing the old complete set.
type TableSet map[string]*Table

// Get returns the table bound to id, or nil.
func (ts TableSet) Get(id string) *Table {
	return ts[id]
}

// RecordsFor returns the record sequence for id, or an empty sequence when
// the table is absent or its payload shape is unrecognized.
func (ts TableSet) RecordsFor(id string) []Record {
	return ts[id].Records()
}

// IDs returns all table identifiers in lexical order, for deterministic
// iteration.
func (ts TableSet) IDs() []string {
	ids := make([]string, 0, len(ts))
	for id := range ts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
