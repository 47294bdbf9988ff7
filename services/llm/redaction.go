// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import "regexp"

// redactionPattern pairs a compiled regex with a labeled replacement so a
// log reader knows what class of secret was removed without seeing it.
type redactionPattern struct {
	pattern     *regexp.Regexp
	replacement string
}

// redactionPatterns is ordered: more specific key formats must precede
// less specific ones sharing a prefix (sk-ant- before sk-).
var redactionPatterns = []redactionPattern{
	{
		pattern:     regexp.MustCompile(`sk-ant-api03-[A-Za-z0-9_-]{20,}`),
		replacement: "[REDACTED:anthropic_key]",
	},
	{
		pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		replacement: "[REDACTED:openai_key]",
	},
	{
		pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		replacement: "[REDACTED:bearer_token]",
	},
	// CRM API tokens arrive as opaque hex/base64 blobs in an apiToken
	// query or header value.
	{
		pattern:     regexp.MustCompile(`(?i)apitoken=[^\s&]{8,}`),
		replacement: "apiToken=[REDACTED]",
	},
	{
		pattern:     regexp.MustCompile(`password=[^\s&]{3,}`),
		replacement: "password=[REDACTED]",
	},
}

// SafeLogString redacts known secret formats from a string destined for
// logs. Always pass request/response material through this before logging.
func SafeLogString(s string) string {
	for _, rp := range redactionPatterns {
		s = rp.pattern.ReplaceAllString(s, rp.replacement)
	}
	return s
}
