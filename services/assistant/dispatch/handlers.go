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
	"context"
	"fmt"
	"strings"

	"github.com/opencrm-tools/crmchat/services/assistant/classify"
	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/match"
	"github.com/opencrm-tools/crmchat/services/assistant/search"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// User-facing Czech messages.
const (
	msgNoRecords      = "Žádné záznamy nenalezeny."
	msgNotFound       = "Nenašel jsem žádný záznam odpovídající dotazu."
	msgNotUnderstood  = "Nerozumím dotazu. Zkuste se zeptat jinak, například \"Kolik firem je v systému?\" nebo \"Najdi firmu Alza\"."
	msgDispatchError  = "Omlouvám se, došlo k chybě při zpracování dotazu. Zkuste to prosím znovu."
	nearestSimilarity = 0.75
)

// handleCount resolves the target category to a record count.
//
// Counts must never be rephrased by a remote model, so UseAI is always
// false here regardless of formatter availability.
func (d *Dispatcher) handleCount(a classify.Analysis) Result {
	tables := d.data.Tables()

	count := 0
	if a.Category != "" {
		count = len(tables.RecordsFor(d.bindings[a.Category]))
	} else {
		for _, cat := range index.AllCategories() {
			count += len(tables.RecordsFor(d.bindings[cat]))
		}
	}

	label := countLabel(a.Category, strings.ToLower(a.Query))
	return Result{
		Intent:   classify.IntentCount,
		Response: fmt.Sprintf("V databázi je celkem %d %s.", count, label),
		UseAI:    false,
		Payload:  CountPayload{Category: a.Category, Count: count, Label: label},
	}
}

// countLabel picks a grammatically plausible Czech label for the counted
// category, preferring the form the user actually typed.
func countLabel(cat index.Category, lowerQuery string) string {
	pick := func(fallback string, forms ...string) string {
		for _, f := range forms {
			if strings.Contains(lowerQuery, f) {
				return f
			}
		}
		return fallback
	}
	switch cat {
	case index.CategoryCompany:
		return pick("firem", "firem", "firmy", "společností", "spolecnosti")
	case index.CategoryContact:
		return pick("kontaktů", "kontaktů", "kontaktu", "osob", "lidí")
	case index.CategoryActivity:
		return pick("aktivit", "aktivit", "úkolů", "ukolu", "schůzek", "schuzek")
	case index.CategoryDeal:
		return pick("obchodů", "obchodů", "obchodu", "smluv", "zakázek", "zakazek")
	default:
		return "záznamů"
	}
}

// handleListAll renders every record of the resolved category, or of all
// categories when none resolved.
func (d *Dispatcher) handleListAll(a classify.Analysis) Result {
	tables := d.data.Tables()

	var records []store.Record
	cat := a.Category
	if cat != "" {
		records = tables.RecordsFor(d.bindings[cat])
	} else {
		for _, c := range index.AllCategories() {
			records = append(records, tables.RecordsFor(d.bindings[c])...)
		}
	}

	if len(records) == 0 {
		return Result{
			Intent:   classify.IntentListAll,
			Response: msgNoRecords,
			UseAI:    false,
			Payload:  ListPayload{Category: cat, Total: 0},
		}
	}

	response := fmt.Sprintf("Nalezeno %d %s:\n%s",
		len(records), categoryLabel(cat, len(records)),
		FormatRecordsList(cat, records, d.limits.MaxListRecords))
	return Result{
		Intent:   classify.IntentListAll,
		Response: response,
		UseAI:    false,
		Payload:  ListPayload{Category: cat, Records: records, Total: len(records)},
	}
}

// handleSearch answers a specific-entity query through the name matcher.
func (d *Dispatcher) handleSearch(a classify.Analysis) Result {
	records := d.findByName(a)

	switch len(records) {
	case 0:
		return Result{
			Intent:   classify.IntentSearchSpecific,
			Response: msgNotFound,
			UseAI:    false,
			Payload:  SearchPayload{Category: a.Category, EntityName: a.EntityName},
		}
	case 1:
		return Result{
			Intent:   classify.IntentSearchSpecific,
			Response: FormatSingleRecord(a.Category, records[0]),
			UseAI:    true,
			Payload:  SearchPayload{Category: a.Category, EntityName: a.EntityName, Records: records},
		}
	default:
		response := fmt.Sprintf("Nalezeno %d záznamů:\n%s",
			len(records), FormatRecordsList(a.Category, records, d.limits.MaxListRecords))
		return Result{
			Intent:   classify.IntentSearchSpecific,
			Response: response,
			UseAI:    false,
			Payload:  SearchPayload{Category: a.Category, EntityName: a.EntityName, Records: records},
		}
	}
}

// handleDetails renders the best-matching record's full field set.
func (d *Dispatcher) handleDetails(a classify.Analysis) Result {
	records := d.findByName(a)
	if len(records) == 0 {
		return Result{
			Intent:   classify.IntentGetDetails,
			Response: msgNotFound,
			UseAI:    false,
			Payload:  DetailPayload{Category: a.Category},
		}
	}

	rec := records[0]
	return Result{
		Intent:   classify.IntentGetDetails,
		Response: FormatRecordDetails(a.Category, rec),
		UseAI:    true,
		Payload:  DetailPayload{Category: a.Category, Record: rec},
	}
}

// handleRelated finds the main record, then cross-references every other
// category against its canonical name.
func (d *Dispatcher) handleRelated(a classify.Analysis) Result {
	snap := d.data.Snapshot()

	records := d.findByName(a)
	if len(records) == 0 {
		return Result{
			Intent:   classify.IntentFindRelated,
			Response: msgNotFound,
			UseAI:    false,
			Payload:  RelatedPayload{},
		}
	}

	main := records[0]
	mainCat := a.Category
	mainName := index.CanonicalName(mainCat, main)
	if mainName == "" {
		mainName = a.EntityName
	}

	related := make(map[index.Category][]store.Record)
	var sections []string
	sections = append(sections, "**"+mainName+"**")
	for _, cat := range index.AllCategories() {
		if cat == mainCat {
			continue
		}
		hits := CrossReference(snap.Entries(cat), cat, mainName)
		if len(hits) == 0 {
			continue
		}
		related[cat] = hits
		sections = append(sections, fmt.Sprintf("Související %s:\n%s",
			categoryLabel(cat, len(hits)),
			FormatRecordsList(cat, hits, d.limits.MaxListRecords)))
	}

	if len(related) == 0 {
		return Result{
			Intent:   classify.IntentFindRelated,
			Response: fmt.Sprintf("Pro záznam %q jsem nenašel žádné související záznamy.", mainName),
			UseAI:    false,
			Payload:  RelatedPayload{MainName: mainName, Main: main, Related: related},
		}
	}
	return Result{
		Intent:   classify.IntentFindRelated,
		Response: strings.Join(sections, "\n\n"),
		UseAI:    true,
		Payload:  RelatedPayload{MainName: mainName, Main: main, Related: related},
	}
}

// handleGeneral runs the unscoped text search, falling back to the raw
// table scan when no index has been built yet.
func (d *Dispatcher) handleGeneral(ctx context.Context, a classify.Analysis) Result {
	snap := d.data.Snapshot()

	var hits []search.Hit
	if snap.Empty() {
		hits = d.scorer.FallbackSearch(d.data.Tables(), a.Query, a.EntityName, d.limits.MaxSearchResults)
	} else {
		hits = d.scorer.TextSearch(snap, a.Query, d.limits.MaxSearchResults)
	}

	if len(hits) == 0 {
		if res, ok := d.nearestNameResult(ctx, a); ok {
			return res
		}
		return Result{
			Intent:   classify.IntentGeneral,
			Response: msgNotUnderstood,
			UseAI:    false,
			Payload:  GeneralPayload{},
		}
	}

	var b strings.Builder
	b.WriteString("Našel jsem tyto záznamy:\n")
	for i, h := range hits {
		name := index.CanonicalName(h.Category, h.Record)
		if name == "" {
			name = unnamedRecord
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}

	return Result{
		Intent:   classify.IntentGeneral,
		Response: strings.TrimRight(b.String(), "\n"),
		UseAI:    true,
		Payload:  GeneralPayload{Hits: hits},
	}
}

// nearestNameResult consults the optional semantic name lookup when the
// keyword paths found nothing. Only high-confidence neighbors are offered;
// anything below the threshold keeps the deterministic fallback message.
func (d *Dispatcher) nearestNameResult(ctx context.Context, a classify.Analysis) (Result, bool) {
	if d.similarity == nil {
		return Result{}, false
	}
	cat, name, sim, ok := d.similarity.NearestName(ctx, a.Query)
	if !ok || sim < nearestSimilarity {
		return Result{}, false
	}
	return Result{
		Intent:   classify.IntentGeneral,
		Response: fmt.Sprintf("Nenašel jsem přímou shodu, ale podobný záznam: %s (%s).", name, categoryLabel(cat, 1)),
		UseAI:    false,
		Payload:  GeneralPayload{},
	}, true
}

// findByName resolves the analysis to name-matched records, using the
// index-free fallback scan when no index exists yet.
func (d *Dispatcher) findByName(a classify.Analysis) []store.Record {
	needle := a.EntityName
	if needle == "" {
		needle = a.Query
	}

	snap := d.data.Snapshot()
	if snap.Empty() {
		hits := d.scorer.FallbackSearch(d.data.Tables(), a.Query, a.EntityName, d.limits.MaxSearchResults)
		records := make([]store.Record, len(hits))
		for i, h := range hits {
			records[i] = h.Record
		}
		return records
	}
	return match.FindByName(snap, a.Category, needle)
}

// categoryLabel returns the Czech plural label for a category.
func categoryLabel(cat index.Category, n int) string {
	switch cat {
	case index.CategoryCompany:
		if n == 1 {
			return "firma"
		}
		return "firem"
	case index.CategoryContact:
		if n == 1 {
			return "kontakt"
		}
		return "kontaktů"
	case index.CategoryActivity:
		if n == 1 {
			return "aktivita"
		}
		return "aktivit"
	case index.CategoryDeal:
		if n == 1 {
			return "obchod"
		}
		return "obchodů"
	default:
		return "záznamů"
	}
}
