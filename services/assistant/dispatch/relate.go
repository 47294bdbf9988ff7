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
	"strings"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// crossRefFields lists the foreign-key-like fields tested per target
// category. Deal titles often embed the company name, so deals also test
// their own name fields.
var crossRefFields = map[index.Category][]string{
	index.CategoryCompany:  {"name", "nazev", "company", "firma"},
	index.CategoryContact:  {"company", "firma", "zamestnavatel", "employer"},
	index.CategoryActivity: {"company", "firma", "client", "klient", "customer", "zakaznik"},
	index.CategoryDeal:     {"company", "firma", "name", "nazev"},
}

// CrossReference returns the records in one category whose reference
// fields contain the main record's canonical name, or vice versa.
//
// Description:
//
//	Substring containment only, case-insensitive, tested in either
//	direction. No fuzzy matching here: relation lookups must not produce
//	speculative links. Results keep original index order and carry no
//	score.
func CrossReference(entries []index.Entry, cat index.Category, mainName string) []store.Record {
	needle := strings.ToLower(strings.TrimSpace(mainName))
	if needle == "" {
		return nil
	}

	var out []store.Record
	for i := range entries {
		if crossRefMatches(entries[i].Record, crossRefFields[cat], needle) {
			out = append(out, entries[i].Record)
		}
	}
	return out
}

func crossRefMatches(rec store.Record, fields []string, needle string) bool {
	for _, f := range fields {
		v := strings.ToLower(rec.Value(f))
		if v == "" {
			continue
		}
		if strings.Contains(v, needle) || strings.Contains(needle, v) {
			return true
		}
	}
	return false
}
