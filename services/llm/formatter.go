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

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// formatTimeout bounds one polishing call. The local answer is already
	// computed, so a slow model just means falling back to it.
	formatTimeout = 15 * time.Second

	// maxPayloadChars caps the serialized payload included in the prompt.
	maxPayloadChars = 4000

	formatSystemPrompt = "Jsi asistent CRM systému. Dostaneš dotaz uživatele, " +
		"lokálně vypočtenou odpověď a strukturovaná data. Přeformuluj odpověď " +
		"do přirozené češtiny. Nevymýšlej si žádné údaje, které v datech nejsou. " +
		"Odpověz pouze výsledným textem."
)

// Formatter polishes locally computed answers through a chat model.
//
// Description:
//
//	Wraps a Client with prompt construction, a per-call timeout and
//	defensive output handling. Formatting is additive: callers keep their
//	local response on any error or empty reply.
//
// Thread Safety: Safe for concurrent use when the wrapped Client is.
type Formatter struct {
	client Client
	logger *slog.Logger
}

// NewFormatter wraps a chat client.
func NewFormatter(client Client, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{client: client, logger: logger}
}

// NewFormatterFromEnv builds a formatter from whichever provider has
// credentials configured, Anthropic first. Returns nil without error when
// no provider is configured: a missing formatter is a normal deployment.
func NewFormatterFromEnv(logger *slog.Logger) (*Formatter, error) {
	if client, err := NewAnthropicClient(); err == nil {
		return NewFormatter(client, logger), nil
	}
	if client, err := NewOpenAIClient(); err == nil {
		return NewFormatter(client, logger), nil
	}
	return nil, nil
}

// Polish reformulates a local response as prose.
//
// Inputs:
//   - query: The user's original question.
//   - payload: The intent-specific structured result, serialized into the
//     prompt so the model cannot invent data.
//   - localResponse: The deterministic local answer being refined.
//
// Outputs:
//   - string: The polished text.
//   - error: Any transport, API or serialization failure. Callers must
//     treat an error as "keep the local response", never as a failed query.
func (f *Formatter) Polish(ctx context.Context, query string, payload any, localResponse string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, formatTimeout)
	defer cancel()

	prompt, err := buildFormatPrompt(query, payload, localResponse)
	if err != nil {
		return "", err
	}

	start := time.Now()
	reply, err := f.client.Chat(ctx, []Message{
		{Role: "system", Content: formatSystemPrompt},
		{Role: "user", Content: prompt},
	}, GenerationParams{})
	if err != nil {
		return "", fmt.Errorf("polishing response: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("polishing response: model returned empty text")
	}

	f.logger.Debug("response polished",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("local_len", len(localResponse)),
		slog.Int("polished_len", len(reply)))
	return reply, nil
}

// buildFormatPrompt assembles the polishing prompt.
func buildFormatPrompt(query string, payload any, localResponse string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Dotaz uživatele: %s\n\n", query)
	fmt.Fprintf(&b, "Lokální odpověď:\n%s\n", localResponse)

	if payload != nil {
		serialized, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("serializing payload for prompt: %w", err)
		}
		data := string(serialized)
		if len(data) > maxPayloadChars {
			data = data[:maxPayloadChars] + "…"
		}
		fmt.Fprintf(&b, "\nData:\n%s\n", data)
	}
	return b.String(), nil
}
