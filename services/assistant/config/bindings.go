// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the assistant's category↔table bindings, keyword
// synonyms, and scoring weights from an embedded YAML default with an
// optional file override.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
)

//go:embed bindings.yaml
var defaultBindingsYAML []byte

// TableBinding binds one CRM table to an entity category, optionally with
// free-text keyword synonyms that override the built-in category keyword
// sets during entity extraction.
type TableBinding struct {
	// ID is the upstream table identifier.
	ID string `yaml:"id"`

	// Name is the human-readable table label.
	Name string `yaml:"name"`

	// Category is one of company, contact, activity, deal.
	Category index.Category `yaml:"category"`

	// Keywords are optional lowercase synonyms matched before the static
	// keyword sets.
	Keywords []string `yaml:"keywords"`
}

// ScoringConfig carries the text-search weights.
type ScoringConfig struct {
	// MinTermLength discards query terms shorter than this many runes.
	MinTermLength int `yaml:"min_term_length"`

	// BaseWeight is added per term found in an entry's search text.
	BaseWeight int `yaml:"base_weight"`

	// ImportantFieldWeight replaces BaseWeight when the term also appears
	// in one of the entry's important fields.
	ImportantFieldWeight int `yaml:"important_field_weight"`

	// WordBoundaryBonus is added when the term matches at a word boundary.
	WordBoundaryBonus int `yaml:"word_boundary_bonus"`

	// SmartEntityMultiplier scales an indexed entry's score when the
	// extracted entity name also matches the entry's names.
	SmartEntityMultiplier int `yaml:"smart_entity_multiplier"`

	// FallbackEntityMultiplier scales a raw-record score in the
	// index-free fallback search when the extracted entity name matches a
	// priority field.
	FallbackEntityMultiplier int `yaml:"fallback_entity_multiplier"`
}

// LimitsConfig carries result truncation limits.
type LimitsConfig struct {
	// MaxListRecords caps the numbered list renderer.
	MaxListRecords int `yaml:"max_list_records"`

	// MaxSearchResults caps text-search result sets.
	MaxSearchResults int `yaml:"max_search_results"`
}

// AssistantConfig is the root configuration document.
type AssistantConfig struct {
	Tables  []TableBinding `yaml:"tables"`
	Scoring ScoringConfig  `yaml:"scoring"`
	Limits  LimitsConfig   `yaml:"limits"`
}

// Bindings returns the category→table-identifier mapping.
func (c *AssistantConfig) Bindings() map[index.Category]string {
	out := make(map[index.Category]string, len(c.Tables))
	for _, t := range c.Tables {
		out[t.Category] = t.ID
	}
	return out
}

// Synonyms returns the per-category keyword synonym lists for tables that
// declare any. Categories without synonyms are absent from the map.
func (c *AssistantConfig) Synonyms() map[index.Category][]string {
	out := make(map[index.Category][]string)
	for _, t := range c.Tables {
		if len(t.Keywords) > 0 {
			out[t.Category] = append(out[t.Category], t.Keywords...)
		}
	}
	return out
}

var (
	loadedConfig *AssistantConfig
	loadErr      error
	loadOnce     sync.Once
)

// Load returns the assistant configuration, parsing it on first call.
//
// Description:
//
//	Reads the file named by CRMCHAT_CONFIG when set, otherwise the
//	embedded default. The parsed document is validated and cached; later
//	calls return the cached value.
func Load() (*AssistantConfig, error) {
	loadOnce.Do(func() {
		raw := defaultBindingsYAML
		if path := os.Getenv("CRMCHAT_CONFIG"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				loadErr = fmt.Errorf("reading config %s: %w", path, err)
				return
			}
			raw = data
		}
		loadedConfig, loadErr = Parse(raw)
	})
	return loadedConfig, loadErr
}

// MustLoad returns the configuration or panics. Intended for process
// startup paths where a broken config should abort immediately.
func MustLoad() *AssistantConfig {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("assistant config: %v", err))
	}
	return cfg
}

// Reset clears the cached configuration. Test use only.
func Reset() {
	loadOnce = sync.Once{}
	loadedConfig = nil
	loadErr = nil
}

// Parse decodes and validates a configuration document.
func Parse(raw []byte) (*AssistantConfig, error) {
	var cfg AssistantConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing assistant config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AssistantConfig) {
	if cfg.Scoring.MinTermLength == 0 {
		cfg.Scoring.MinTermLength = 2
	}
	if cfg.Scoring.BaseWeight == 0 {
		cfg.Scoring.BaseWeight = 1
	}
	if cfg.Scoring.ImportantFieldWeight == 0 {
		cfg.Scoring.ImportantFieldWeight = 2
	}
	if cfg.Scoring.WordBoundaryBonus == 0 {
		cfg.Scoring.WordBoundaryBonus = 1
	}
	if cfg.Scoring.SmartEntityMultiplier == 0 {
		cfg.Scoring.SmartEntityMultiplier = 2
	}
	if cfg.Scoring.FallbackEntityMultiplier == 0 {
		cfg.Scoring.FallbackEntityMultiplier = 10
	}
	if cfg.Limits.MaxListRecords == 0 {
		cfg.Limits.MaxListRecords = 20
	}
	if cfg.Limits.MaxSearchResults == 0 {
		cfg.Limits.MaxSearchResults = 10
	}
}

func validate(cfg *AssistantConfig) error {
	seenCategory := make(map[index.Category]string, len(cfg.Tables))
	seenTable := make(map[string]struct{}, len(cfg.Tables))
	for i, t := range cfg.Tables {
		if t.ID == "" {
			return fmt.Errorf("tables[%d]: missing id", i)
		}
		if !t.Category.Valid() {
			return fmt.Errorf("tables[%d] (%s): unknown category %q", i, t.ID, t.Category)
		}
		if prev, dup := seenCategory[t.Category]; dup {
			return fmt.Errorf("category %q bound to both %q and %q", t.Category, prev, t.ID)
		}
		if _, dup := seenTable[t.ID]; dup {
			return fmt.Errorf("table %q bound more than once", t.ID)
		}
		seenCategory[t.Category] = t.ID
		seenTable[t.ID] = struct{}{}
	}
	if cfg.Scoring.MinTermLength < 1 {
		return fmt.Errorf("scoring.min_term_length must be >= 1, got %d", cfg.Scoring.MinTermLength)
	}
	if cfg.Scoring.BaseWeight < 1 || cfg.Scoring.ImportantFieldWeight < cfg.Scoring.BaseWeight {
		return fmt.Errorf("scoring weights must satisfy 1 <= base (%d) <= important (%d)",
			cfg.Scoring.BaseWeight, cfg.Scoring.ImportantFieldWeight)
	}
	if cfg.Scoring.SmartEntityMultiplier < 1 || cfg.Scoring.FallbackEntityMultiplier < 1 {
		return fmt.Errorf("entity multipliers must be >= 1")
	}
	if cfg.Limits.MaxListRecords < 1 || cfg.Limits.MaxSearchResults < 1 {
		return fmt.Errorf("limits must be >= 1")
	}
	return nil
}
