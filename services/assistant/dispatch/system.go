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

	"github.com/opencrm-tools/crmchat/services/assistant/classify"
)

// cannedResponses map system-query keywords to static answers. Iterated in
// order; the first entry whose keyword list matches wins.
var cannedResponses = []struct {
	key      string
	keywords []string
	response string
}{
	{
		key:      "identity",
		keywords: []string{"kdo jsi", "kdo jste", "co jsi"},
		response: "Jsem CRM asistent. Odpovídám na dotazy nad vašimi firmami, kontakty, aktivitami a obchodními případy.",
	},
	{
		key:      "version",
		keywords: []string{"verze", "verzi"},
		response: "CRM asistent, verze 1.0.",
	},
	{
		key:      "model",
		keywords: []string{"model"},
		response: "Dotazy zpracovávám lokálně; pro přeformulování odpovědí mohu volitelně využít vzdálený jazykový model.",
	},
	{
		key:      "capabilities",
		keywords: []string{"co umíš", "co umis", "co dokážeš", "co dokazes", "nápověda", "napoveda", "pomoc", "help"},
		response: "Umím počítat záznamy (\"Kolik firem je v systému?\"), vypisovat je (\"Vypiš všechny kontakty\"), vyhledávat (\"Najdi firmu Alza\") a hledat související záznamy.",
	},
}

// systemFallback answers system queries no canned entry matched.
const systemFallback = "Jsem CRM asistent. Zeptejte se mě na vaše firmy, kontakty, aktivity nebo obchodní případy."

// handleSystem serves the static keyword→response table. System answers
// are never polished remotely.
func (d *Dispatcher) handleSystem(a classify.Analysis) Result {
	lower := strings.ToLower(a.Query)
	for _, c := range cannedResponses {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return Result{
					Intent:   classify.IntentSystem,
					Response: c.response,
					UseAI:    false,
					Payload:  SystemPayload{Keyword: c.key},
				}
			}
		}
	}
	return Result{
		Intent:   classify.IntentSystem,
		Response: systemFallback,
		UseAI:    false,
		Payload:  SystemPayload{},
	}
}
