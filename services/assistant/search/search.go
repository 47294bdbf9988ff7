// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search scores indexed records against tokenized free-text
// queries, with an index-free fallback that scans raw table payloads.
package search

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opencrm-tools/crmchat/services/assistant/config"
	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/match"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	searchHitsCount = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crmchat",
		Subsystem: "search",
		Name:      "hits_count",
		Help:      "Number of records returned per search",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"mode"})

	searchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crmchat",
		Subsystem: "search",
		Name:      "latency_seconds",
		Help:      "Search execution latency",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"mode"})
)

// fallbackNameFields are the record fields checked by the index-free
// fallback when deciding whether an extracted entity name earns the
// fallback multiplier.
var fallbackNameFields = [...]string{
	"name", "nazev", "jmeno", "prijmeni", "company", "firma", "title", "subject",
}

// Hit is one scored search result.
type Hit struct {
	Record   store.Record
	Category index.Category
	Score    int
}

// Scorer evaluates query terms against indexed entries using the
// configured weights.
//
// Thread Safety: Safe for concurrent use; configuration is read-only after
// construction.
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Tokenize lowercases and whitespace-splits a query, discarding terms
// shorter than the configured minimum rune length.
func (s *Scorer) Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= s.cfg.MinTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

// ScoreEntry scores one index entry against pre-tokenized terms.
//
// Description:
//
//	Each term found in the entry's search text adds the base weight, or
//	the important-field weight when the term also appears in one of the
//	entry's important fields. Terms matching at a word boundary add the
//	boundary bonus on top. Entries scoring 0 are excluded from all result
//	sets.
func (s *Scorer) ScoreEntry(entry *index.Entry, terms []string) int {
	score := 0
	for _, term := range terms {
		if !strings.Contains(entry.SearchText, term) {
			continue
		}
		weight := s.cfg.BaseWeight
		if entry.ImportantText != "" && strings.Contains(entry.ImportantText, term) {
			weight = s.cfg.ImportantFieldWeight
		}
		score += weight
		if matchesAtWordBoundary(entry.SearchText, term) {
			score += s.cfg.WordBoundaryBonus
		}
	}
	return score
}

// TextSearch scores every entry across all categories against the query
// and returns up to limit hits, highest score first, ties in original
// index order.
func (s *Scorer) TextSearch(snap *index.Snapshot, query string, limit int) []Hit {
	start := time.Now()
	terms := s.Tokenize(query)

	var hits []Hit
	for _, cat := range index.AllCategories() {
		entries := snap.Entries(cat)
		for i := range entries {
			if score := s.ScoreEntry(&entries[i], terms); score > 0 {
				hits = append(hits, Hit{Record: entries[i].Record, Category: cat, Score: score})
			}
		}
	}
	hits = selectTop(hits, limit)

	searchLatency.WithLabelValues("text").Observe(time.Since(start).Seconds())
	searchHitsCount.WithLabelValues("text").Observe(float64(len(hits)))
	return hits
}

// SmartEntitySearch scores one category's entries against the query,
// multiplying an entry's score when the extracted entity name also matches
// the entry's name variants.
func (s *Scorer) SmartEntitySearch(snap *index.Snapshot, cat index.Category, query, entityName string, limit int) []Hit {
	start := time.Now()
	terms := s.Tokenize(query)

	var hits []Hit
	entries := snap.EntriesFor(cat)
	for i := range entries {
		score := s.ScoreEntry(&entries[i], terms)
		if score == 0 {
			continue
		}
		if entityName != "" && match.ScoreNames(entries[i].Names, entityName) > 0 {
			score *= s.cfg.SmartEntityMultiplier
		}
		hits = append(hits, Hit{Record: entries[i].Record, Category: cat, Score: score})
	}
	hits = selectTop(hits, limit)

	searchLatency.WithLabelValues("smart").Observe(time.Since(start).Seconds())
	searchHitsCount.WithLabelValues("smart").Observe(float64(len(hits)))
	return hits
}

// FallbackSearch scans every record of every table without a prebuilt
// index.
//
// Description:
//
//	Required behavior when no index exists yet. Each record is
//	JSON-serialized and the lowercased serialization searched for each
//	query term (base weight per term found). When entityName is non-empty
//	and matches one of the record's priority name fields by
//	case-insensitive substring containment, the record's score is
//	multiplied by the fallback entity multiplier. Recall is equal or
//	better than the indexed path because the whole serialized record is
//	searched, not just the priority fields.
func (s *Scorer) FallbackSearch(tables store.TableSet, query, entityName string, limit int) []Hit {
	start := time.Now()
	terms := s.Tokenize(query)
	lowerName := strings.ToLower(strings.TrimSpace(entityName))

	var hits []Hit
	for _, id := range tables.IDs() {
		for _, rec := range tables.RecordsFor(id) {
			serialized, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			text := strings.ToLower(string(serialized))

			score := 0
			for _, term := range terms {
				if strings.Contains(text, term) {
					score += s.cfg.BaseWeight
				}
			}
			if score == 0 {
				continue
			}
			if lowerName != "" && fallbackNameMatches(rec, lowerName) {
				score *= s.cfg.FallbackEntityMultiplier
			}
			hits = append(hits, Hit{Record: rec, Score: score})
		}
	}
	hits = selectTop(hits, limit)

	searchLatency.WithLabelValues("fallback").Observe(time.Since(start).Seconds())
	searchHitsCount.WithLabelValues("fallback").Observe(float64(len(hits)))
	return hits
}

// fallbackNameMatches reports whether the extracted entity name and one of
// the record's priority name fields contain each other (either direction).
func fallbackNameMatches(rec store.Record, lowerName string) bool {
	for _, f := range fallbackNameFields {
		v := strings.ToLower(rec.Value(f))
		if v == "" {
			continue
		}
		if strings.Contains(v, lowerName) || strings.Contains(lowerName, v) {
			return true
		}
	}
	return false
}

// selectTop sorts hits by descending score (stable, original order on
// ties) and truncates to limit. limit <= 0 means unlimited.
func selectTop(hits []Hit, limit int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// matchesAtWordBoundary reports whether term occurs in text at a position
// not preceded by a letter or digit. Implemented as a rune scan rather
// than a \b regex so Czech diacritics count as word characters.
func matchesAtWordBoundary(text, term string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return false
		}
		pos := from + i
		if pos == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:pos])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		from = pos + len(term)
		if from >= len(text) {
			return false
		}
	}
}
