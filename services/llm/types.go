// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the remote prose-formatting collaborators: thin
// REST clients for hosted language models plus the formatter that turns a
// locally computed answer into polished Czech prose. Every call here is
// strictly additive — the assistant's local answers never depend on it.
package llm

import "context"

// Message is one chat turn in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams carries the optional sampling knobs common to all
// providers. Nil fields keep the provider default.
type GenerationParams struct {
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
	Stop        []string
}

// Client is a minimal chat-completion client.
type Client interface {
	// Chat sends the conversation and returns the assistant's text reply.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// Generate is the single-prompt convenience form of Chat.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
