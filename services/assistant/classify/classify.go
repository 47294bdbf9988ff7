// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify decides a free-text query's intent, target entity
// category, and extracted entity name via Czech keyword and pattern
// heuristics. Classification is state-free: every query is analyzed from
// scratch and the analysis discarded once answered.
package classify

import (
	"regexp"
	"strings"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
)

// Intent is the classified purpose of a query.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentSystem
	IntentCount
	IntentListAll
	IntentSearchSpecific
	IntentGetDetails
	IntentFindRelated
	IntentError
)

var intentNames = map[Intent]string{
	IntentGeneral:        "general",
	IntentSystem:         "system",
	IntentCount:          "count",
	IntentListAll:        "list_all",
	IntentSearchSpecific: "search_specific",
	IntentGetDetails:     "get_details",
	IntentFindRelated:    "find_related",
	IntentError:          "error",
}

// String returns the intent's stable wire name.
func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return "general"
}

// Analysis is the result of classifying one query. Constructed fresh per
// query, never persisted.
type Analysis struct {
	// Query is the original query string.
	Query string

	// Intent is the classified intent.
	Intent Intent

	// Category is the resolved entity category, or "" when no category
	// keyword matched. Attached regardless of intent.
	Category index.Category

	// EntityName is the extracted proper-noun-like substring, or "".
	EntityName string
}

// CategoryResolver resolves an entity category from a lowercased query.
// Resolvers run in order; the first hit wins.
type CategoryResolver interface {
	Resolve(lowerQuery string) (index.Category, bool)
}

// StaticResolver matches the built-in Czech keyword stems, categories
// checked in fixed order.
type StaticResolver struct{}

// Resolve implements CategoryResolver.
func (StaticResolver) Resolve(lowerQuery string) (index.Category, bool) {
	for _, cat := range index.AllCategories() {
		if containsAny(lowerQuery, categoryKeywords[cat]) {
			return cat, true
		}
	}
	return "", false
}

// SynonymResolver matches per-category keyword synonyms supplied by
// external configuration (the setup-wizard override). It takes priority
// over the static sets when installed ahead of them in the resolver chain.
type SynonymResolver struct {
	synonyms map[index.Category][]string
}

// NewSynonymResolver builds a resolver over lowercased synonym lists.
// Categories with no synonyms never match.
func NewSynonymResolver(synonyms map[index.Category][]string) *SynonymResolver {
	owned := make(map[index.Category][]string, len(synonyms))
	for cat, words := range synonyms {
		lowered := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				lowered = append(lowered, w)
			}
		}
		owned[cat] = lowered
	}
	return &SynonymResolver{synonyms: owned}
}

// Resolve implements CategoryResolver.
func (r *SynonymResolver) Resolve(lowerQuery string) (index.Category, bool) {
	for _, cat := range index.AllCategories() {
		if containsAny(lowerQuery, r.synonyms[cat]) {
			return cat, true
		}
	}
	return "", false
}

// =============================================================================
// Entity Name Extraction
// =============================================================================

// capWord matches one capitalized (Unicode-aware, Czech diacritics
// included) word, allowing digits, dots, dashes and ampersands inside
// ("Alza.cz", "T-Mobile", "M&S").
const capWord = `[\p{Lu}][\p{L}\d.\-&]*`

// nameCapture captures one or two capitalized words ("Alza.cz",
// "Jana Nováková").
const nameCapture = `(` + capWord + `(?:\s+` + capWord + `)?)`

// namePatterns are tried in order against the original-case query. The
// first capturing-group match wins. Category trigger patterns come before
// the generic "o X" pattern; triggers are case-insensitive while the
// captured name must be capitalized.
var namePatterns = []struct {
	re *regexp.Regexp

	// category reports whether the trigger itself names an entity
	// category (the "firma ABC" family), which forces search intent.
	category bool
}{
	{regexp.MustCompile(`(?i:o\s+firmě|o\s+firme|o\s+společnosti|o\s+spolecnosti)\s+` + nameCapture), true},
	{regexp.MustCompile(`(?i:firmě|firmou|firmu|firmy|firma|společností|společnosti|společnost|spolecnosti|spolecnost)\s+` + nameCapture), true},
	{regexp.MustCompile(`(?i:kontaktu|kontakt|osobu|osobě|osoba)\s+` + nameCapture), true},
	{regexp.MustCompile(`(?i:obchodu|obchod|zakázku|zakázka|zakazku|zakazka)\s+` + nameCapture), true},
	{regexp.MustCompile(`\b(?i:o)\s+` + nameCapture), false},
}

// extractEntityName pulls a proper-noun-like name from the original-case
// query. The second return reports whether the matching pattern's trigger
// was a category word.
func extractEntityName(query string) (string, bool) {
	for _, p := range namePatterns {
		if m := p.re.FindStringSubmatch(query); m != nil {
			return strings.TrimSpace(m[1]), p.category
		}
	}
	return "", false
}

// =============================================================================
// Classifier
// =============================================================================

// Classifier turns raw queries into analyses.
//
// Description:
//
//	Category resolution runs through an ordered resolver chain
//	(configuration synonyms first when installed, static Czech keyword
//	stems last) so external keyword overrides layer in without touching
//	the built-in sets. Intent classification evaluates fixed rules in
//	strict priority order; the first rule that fires wins.
//
// Thread Safety: Safe for concurrent use; all state is read-only after
// construction.
type Classifier struct {
	resolvers []CategoryResolver
}

// NewClassifier creates a classifier with the given resolver chain. When
// no resolver is supplied the static keyword resolver is used alone; a
// static resolver is always appended as the final fallback.
func NewClassifier(resolvers ...CategoryResolver) *Classifier {
	chain := make([]CategoryResolver, 0, len(resolvers)+1)
	chain = append(chain, resolvers...)
	chain = append(chain, StaticResolver{})
	return &Classifier{resolvers: chain}
}

// Analyze classifies one query.
//
// Description:
//
//	Rules in priority order:
//	  1. system keyword → system
//	  2. extracted entity name → one of find_related, get_details or
//	     search_specific; a concrete proper name never classifies as an
//	     aggregate (count/list), even when those keywords are present
//	  3. counting keyword → count
//	  4. listing keyword, no entity name → list_all
//	  5. explicit search verb → search_specific
//	  6. category word + concrete/have qualifier → list_all
//	  7. otherwise → general
func (c *Classifier) Analyze(query string) Analysis {
	lower := strings.ToLower(query)

	a := Analysis{Query: query, Intent: IntentGeneral}
	for _, r := range c.resolvers {
		if cat, ok := r.Resolve(lower); ok {
			a.Category = cat
			break
		}
	}

	name, viaCategory := extractEntityName(query)
	a.EntityName = name

	switch {
	case containsAny(lower, systemKeywords):
		a.Intent = IntentSystem

	case name != "" && (containsAny(lower, relatedKeywords) || len(categoryMentions(lower)) >= 2):
		a.Intent = IntentFindRelated

	case name != "" && containsAny(lower, specificKeywords):
		a.Intent = IntentGetDetails

	case name != "" && viaCategory:
		a.Intent = IntentSearchSpecific

	case containsAny(lower, countKeywords):
		a.Intent = IntentCount

	case name == "" && containsAny(lower, listKeywords):
		a.Intent = IntentListAll

	case containsAny(lower, searchKeywords):
		a.Intent = IntentSearchSpecific

	case a.Category != "" && containsAny(lower, concreteKeywords):
		a.Intent = IntentListAll

	default:
		a.Intent = IntentGeneral
	}
	return a
}
