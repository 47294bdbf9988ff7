// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match scores candidate search strings against record name
// variants using tiered exact/substring/edit-distance matching.
package match

import (
	"sort"
	"strings"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// Match tier scores. Tiers are evaluated highest first per name; a name
// contributes the score of the first tier it satisfies.
const (
	// ScoreExact is awarded for a case-insensitive exact match.
	ScoreExact = 100

	// scoreContainsMax and scoreContainsMin bound the substring tier: the
	// score degrades by 2 per rune of length difference, floored at the
	// minimum.
	scoreContainsMax = 80
	scoreContainsMin = 50

	// ScoreReverseContains is awarded when the query contains the name,
	// provided the name is longer than 2 runes (short names like "AB"
	// embed in too many unrelated queries).
	ScoreReverseContains = 40

	// ScoreFuzzy is awarded when normalized edit-distance similarity
	// exceeds SimilarityThreshold.
	ScoreFuzzy = 30

	// SimilarityThreshold is the minimum normalized similarity for the
	// fuzzy tier.
	SimilarityThreshold = 0.7

	// minReverseNameLen is the exclusive rune-length floor for the
	// reverse-substring tier.
	minReverseNameLen = 2
)

// ScoreNames scores a query against a record's name variants.
//
// Description:
//
//	Case-insensitive. Each name is scored on the highest tier it
//	satisfies; the result is the maximum across all names:
//	  exact                       → 100
//	  name contains query         → max(80 - 2×(len(name)-len(query)), 50)
//	  query contains name (>2 ch) → 40
//	  similarity > 0.7            → 30
//	Lengths are counted in runes so Czech diacritics weigh as one
//	character.
//
// Thread Safety: Pure function, safe for concurrent use.
func ScoreNames(names []string, query string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	qLen := len([]rune(q))

	best := 0
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		score := 0
		nLen := len([]rune(n))
		switch {
		case n == q:
			score = ScoreExact
		case strings.Contains(n, q):
			score = scoreContainsMax - 2*(nLen-qLen)
			if score < scoreContainsMin {
				score = scoreContainsMin
			}
		case strings.Contains(q, n) && nLen > minReverseNameLen:
			score = ScoreReverseContains
		case Similarity(n, q) > SimilarityThreshold:
			score = ScoreFuzzy
		}
		if score > best {
			best = score
		}
	}
	return best
}

// Similarity returns the normalized edit-distance similarity of two
// strings in [0, 1]. Two empty strings are defined as similarity 1.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}
	return float64(longest-LevenshteinDistance(a, b)) / float64(longest)
}

// LevenshteinDistance computes the edit distance between two strings with
// unit insert/delete/substitute costs, using the two-row dynamic
// programming formulation. Operates on runes.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// FindByName returns the records in cat (all categories when cat is empty)
// whose names score above zero against query, ordered by descending score.
// Ties preserve original index order. Scores are not exposed to callers.
func FindByName(snap *index.Snapshot, cat index.Category, query string) []store.Record {
	entries := snap.EntriesFor(cat)

	type scored struct {
		rec   store.Record
		score int
	}
	hits := make([]scored, 0, len(entries))
	for i := range entries {
		if s := ScoreNames(entries[i].Names, query); s > 0 {
			hits = append(hits, scored{rec: entries[i].Record, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	records := make([]store.Record, len(hits))
	for i, h := range hits {
		records[i] = h.rec
	}
	return records
}
