// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store normalizes heterogeneous CRM API payloads into flat record
// sequences and resolves raw field values into display strings.
package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is an opaque mapping from field name to raw value. Records have no
// required schema; absence of a field is never an error. A record may carry
// its payload nested one level under a "fields" key (reference-style wrapper)
// or flat at the top level.
type Record map[string]any

// wrapperKeys are the envelope fields checked, in priority order, when a
// payload is not itself a sequence.
var wrapperKeys = [...]string{"items", "data", "records"}

// displayNameFields is the default priority order used when a nested
// reference object must be reduced to a single display string and its
// category is unknown. Company-style fields come first because references
// in this dataset overwhelmingly point at companies.
var displayNameFields = [...]string{"name", "nazev", "company", "title", "jmeno", "prijmeni"}

// ActualRecords extracts the ordered record sequence wrapped by a raw table
// payload.
//
// Description:
//
//	Accepts the four payload shapes the upstream API is known to produce,
//	checked in fixed priority order:
//	  1. the payload itself is a sequence
//	  2. payload.items is a sequence
//	  3. payload.data is a sequence
//	  4. payload.records is a sequence
//	An unrecognized shape yields an empty sequence, never an error: one
//	malformed table must not block the others.
//
// Thread Safety: Pure function, safe for concurrent use.
func ActualRecords(payload any) []Record {
	if seq, ok := payload.([]any); ok {
		return toRecords(seq)
	}
	if seq, ok := payload.([]Record); ok {
		out := make([]Record, len(seq))
		copy(out, seq)
		return out
	}
	if seq, ok := payload.([]map[string]any); ok {
		out := make([]Record, 0, len(seq))
		for _, m := range seq {
			out = append(out, Record(m))
		}
		return out
	}

	wrapper, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range wrapperKeys {
		if inner, found := wrapper[key]; found {
			if seq, isSeq := inner.([]any); isSeq {
				return toRecords(seq)
			}
		}
	}
	return nil
}

// toRecords converts a raw sequence into records, skipping non-object
// elements rather than failing the whole payload.
func toRecords(seq []any) []Record {
	out := make([]Record, 0, len(seq))
	for _, elem := range seq {
		if m, ok := elem.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// Fields returns the record's field mapping, unwrapping a single "fields"
// nesting level when present. The receiver itself is returned for flat
// records, so callers must treat the result as read-only.
func (r Record) Fields() Record {
	if inner, ok := r["fields"]; ok {
		if m, isMap := inner.(map[string]any); isMap {
			return Record(m)
		}
		if rec, isRec := inner.(Record); isRec {
			return rec
		}
	}
	return r
}

// Value returns the display string for the named field, or "" when the field
// is absent or resolves to an empty value.
func (r Record) Value(field string) string {
	raw, ok := r.Fields()[field]
	if !ok {
		return ""
	}
	return DisplayValue(raw)
}

// DisplayValue reduces a raw field value to a user-facing string.
//
// Description:
//
//	Reference objects carrying a nested "fields" mapping are resolved
//	recursively through the default name-field priority list. Mailto-style
//	objects have their "mailto:" prefix stripped. Arrays join their
//	elements with ", ". Scalars are stringified directly.
func DisplayValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimPrefix(v, "mailto:")
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode as float64; render integers without a
		// trailing fraction.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case []any:
		parts := make([]string, 0, len(v))
		for _, elem := range v {
			if s := DisplayValue(elem); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return displayObject(v)
	case Record:
		return displayObject(map[string]any(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// displayObject resolves a reference-style object to a display string.
func displayObject(obj map[string]any) string {
	if href, ok := obj["href"].(string); ok {
		return strings.TrimPrefix(href, "mailto:")
	}
	if email, ok := obj["email"].(string); ok && strings.HasPrefix(email, "mailto:") {
		return strings.TrimPrefix(email, "mailto:")
	}

	fields := obj
	if inner, ok := obj["fields"].(map[string]any); ok {
		fields = inner
	}
	for _, name := range displayNameFields {
		if raw, ok := fields[name]; ok {
			if s := DisplayValue(raw); s != "" {
				return s
			}
		}
	}
	return ""
}
