// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// unnamedRecord is the display fallback for records yielding no name.
const unnamedRecord = "nepojmenovaný záznam"

// basicFields defines the single-record rendering order: Czech label plus
// the field-name candidates tried for it (first non-empty wins).
var basicFields = []struct {
	label      string
	candidates []string
}{
	{"E-mail", []string{"email", "e-mail"}},
	{"Telefon", []string{"telefon", "phone", "mobil"}},
	{"Město", []string{"mesto", "city"}},
	{"Ulice", []string{"ulice", "street"}},
	{"Vlastník", []string{"vlastnik", "owner"}},
	{"Stav", []string{"status", "stav"}},
}

// FormatRecordsList renders records as a numbered list of canonical names,
// truncated to max entries with a trailing note for the remainder.
func FormatRecordsList(cat index.Category, records []store.Record, max int) string {
	var b strings.Builder
	shown := len(records)
	if max > 0 && shown > max {
		shown = max
	}
	for i := 0; i < shown; i++ {
		name := index.CanonicalName(cat, records[i])
		if name == "" {
			name = unnamedRecord
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	if remaining := len(records) - shown; remaining > 0 {
		fmt.Fprintf(&b, "...a dalších %d záznamů\n", remaining)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSingleRecord renders one record with a bold name header and its
// basic fields as bullets. Absent or empty fields are simply omitted.
func FormatSingleRecord(cat index.Category, rec store.Record) string {
	name := index.CanonicalName(cat, rec)
	if name == "" {
		name = unnamedRecord
	}

	var b strings.Builder
	b.WriteString("**" + name + "**")
	for _, bf := range basicFields {
		for _, field := range bf.candidates {
			if v := rec.Value(field); v != "" {
				fmt.Fprintf(&b, "\n• %s: %s", bf.label, v)
				break
			}
		}
	}
	return b.String()
}

// FormatRecordDetails renders one record with every non-empty field as a
// bullet, fields in lexical order for deterministic output.
func FormatRecordDetails(cat index.Category, rec store.Record) string {
	name := index.CanonicalName(cat, rec)
	if name == "" {
		name = unnamedRecord
	}

	fields := rec.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("**" + name + "**")
	for _, k := range keys {
		if v := store.DisplayValue(fields[k]); v != "" {
			fmt.Fprintf(&b, "\n• %s: %s", k, v)
		}
	}
	return b.String()
}
