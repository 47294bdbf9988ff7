// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
)

// =============================================================================
// Embedded Default Tests
// =============================================================================

func TestParse_EmbeddedDefault(t *testing.T) {
	cfg, err := Parse(defaultBindingsYAML)
	require.NoError(t, err)

	bindings := cfg.Bindings()
	assert.Len(t, bindings, 4)
	for _, cat := range index.AllCategories() {
		assert.NotEmpty(t, bindings[cat], "category %s unbound", cat)
	}

	assert.Equal(t, 2, cfg.Scoring.MinTermLength)
	assert.Equal(t, 1, cfg.Scoring.BaseWeight)
	assert.Equal(t, 2, cfg.Scoring.ImportantFieldWeight)
	assert.Equal(t, 1, cfg.Scoring.WordBoundaryBonus)
	assert.Equal(t, 2, cfg.Scoring.SmartEntityMultiplier)
	assert.Equal(t, 10, cfg.Scoring.FallbackEntityMultiplier)
	assert.Equal(t, 20, cfg.Limits.MaxListRecords)
	assert.Equal(t, 10, cfg.Limits.MaxSearchResults)
}

// =============================================================================
// Defaulting Tests
// =============================================================================

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
tables:
  - id: t1
    category: company
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Scoring.MinTermLength)
	assert.Equal(t, 10, cfg.Scoring.FallbackEntityMultiplier)
	assert.Equal(t, 20, cfg.Limits.MaxListRecords)
}

func TestParse_ExplicitValuesKept(t *testing.T) {
	cfg, err := Parse([]byte(`
tables:
  - id: t1
    category: company
scoring:
  base_weight: 3
  important_field_weight: 6
limits:
  max_list_records: 5
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scoring.BaseWeight)
	assert.Equal(t, 6, cfg.Scoring.ImportantFieldWeight)
	assert.Equal(t, 5, cfg.Limits.MaxListRecords)
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestParse_RejectsDuplicateCategory(t *testing.T) {
	_, err := Parse([]byte(`
tables:
  - id: t1
    category: company
  - id: t2
    category: company
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company")
}

func TestParse_RejectsDuplicateTable(t *testing.T) {
	_, err := Parse([]byte(`
tables:
  - id: t1
    category: company
  - id: t1
    category: contact
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bound more than once")
}

func TestParse_RejectsUnknownCategory(t *testing.T) {
	_, err := Parse([]byte(`
tables:
  - id: t1
    category: invoices
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoices")
}

func TestParse_RejectsMissingTableID(t *testing.T) {
	_, err := Parse([]byte(`
tables:
  - category: company
`))
	require.Error(t, err)
}

func TestParse_RejectsInvertedWeights(t *testing.T) {
	_, err := Parse([]byte(`
tables:
  - id: t1
    category: company
scoring:
  base_weight: 5
  important_field_weight: 2
`))
	require.Error(t, err)
}

// =============================================================================
// Synonym Tests
// =============================================================================

func TestSynonyms(t *testing.T) {
	cfg, err := Parse([]byte(`
tables:
  - id: t1
    category: company
    keywords: [klient, odběratel]
  - id: t2
    category: contact
`))
	require.NoError(t, err)

	syn := cfg.Synonyms()
	assert.Equal(t, []string{"klient", "odběratel"}, syn[index.CategoryCompany])
	_, present := syn[index.CategoryContact]
	assert.False(t, present, "categories without keywords must be absent")
}
