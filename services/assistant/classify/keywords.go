// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"strings"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
)

// Intent keyword sets, matched as lowercase substrings. Both diacritic and
// diacritic-stripped spellings appear because users type either.
var (
	systemKeywords = []string{
		"verze", "verzi", "model", "kdo jsi", "kdo jste", "co jsi",
		"co umíš", "co umis", "co dokážeš", "co dokazes",
		"nápověda", "napoveda", "pomoc", "help",
	}

	countKeywords = []string{
		"kolik", "počet", "pocet", "celkem", "součet", "soucet",
		"průměr", "prumer", "statistik",
	}

	listKeywords = []string{
		"vypiš", "vypis", "seznam", "všechny", "vsechny", "jaké", "jake",
		"které", "ktere", "zobraz", "jména", "jmena", "názvy", "nazvy",
		"ukaž", "ukaz",
	}

	searchKeywords = []string{
		"najdi", "vyhledej", "hledej", "hledám", "hledam",
	}

	concreteKeywords = []string{
		"konkrét", "konkret", "jsou", "máme", "mame",
	}

	// specificKeywords mark a query as asking about one concrete record
	// (details/info/"tell me about"/"show me").
	specificKeywords = []string{
		"detail", "podrobnost", "info", "řekni mi", "rekni mi",
		"ukaž mi", "ukaz mi", "více o", "vice o",
	}

	relatedKeywords = []string{
		"souvis", "spojen", "vztah", "patří", "patri", "vazb",
		"navázan", "navazan",
	}
)

// categoryKeywords holds the Czech morphological stems for each entity
// category. Stems are matched as substrings, so "firm" covers firma,
// firmy, firmu, firmě and firmou.
var categoryKeywords = map[index.Category][]string{
	index.CategoryCompany: {
		"firm", "firem", "společnost", "spolecnost", "podnik",
	},
	index.CategoryContact: {
		"kontakt", "osob", "lidé", "lide", "lidi", "člověk", "clovek",
		"zákazn", "zakazn",
	},
	index.CategoryActivity: {
		"aktivit", "úkol", "ukol", "schůzk", "schuzk", "událost",
		"udalost", "jednání", "jednani",
	},
	index.CategoryDeal: {
		"obchod", "zakázk", "zakazk", "smlouv", "deal", "případ",
		"pripad", "nabídk", "nabidk",
	},
}

// containsAny reports whether lowerQuery contains any of the listed
// lowercase substrings.
func containsAny(lowerQuery string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerQuery, kw) {
			return true
		}
	}
	return false
}

// categoryMentions returns every category whose keyword set matches, in
// fixed category order.
func categoryMentions(lowerQuery string) []index.Category {
	var mentioned []index.Category
	for _, cat := range index.AllCategories() {
		if containsAny(lowerQuery, categoryKeywords[cat]) {
			mentioned = append(mentioned, cat)
		}
	}
	return mentioned
}
