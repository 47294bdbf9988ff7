// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assistant

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opencrm-tools/crmchat/services/assistant/dispatch"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// Handlers carries the HTTP handler dependencies.
type Handlers struct {
	session    *Session
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// NewHandlers wires the HTTP layer.
func NewHandlers(session *Session, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{session: session, dispatcher: dispatcher, logger: logger}
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

type queryResponse struct {
	ID       string           `json:"id"`
	Intent   string           `json:"intent"`
	Response string           `json:"response"`
	UseAI    bool             `json:"useAI"`
	Payload  dispatch.Payload `json:"payload,omitempty"`
}

// HandleQuery answers one natural-language query.
//
// The dispatcher absorbs every downstream failure, so this handler can
// only fail on a malformed request body.
func (h *Handlers) HandleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be {\"query\": \"...\"}"})
		return
	}

	result := h.dispatcher.Handle(c.Request.Context(), req.Query)
	c.JSON(http.StatusOK, queryResponse{
		ID:       uuid.NewString(),
		Intent:   result.Intent.String(),
		Response: result.Response,
		UseAI:    result.UseAI,
		Payload:  result.Payload,
	})
}

type loadTableEntry struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// HandleLoadTables replaces the loaded dataset. The body maps table
// identifier to {name, data}; data may be any of the accepted payload
// shapes and is normalized lazily by the record store.
func (h *Handlers) HandleLoadTables(c *gin.Context) {
	var body map[string]loadTableEntry
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must map table id to {name, data}"})
		return
	}

	tables := make(store.TableSet, len(body))
	for id, entry := range body {
		tables[id] = &store.Table{ID: id, Name: entry.Name, Data: entry.Data}
	}
	stats := h.session.LoadTables(tables)

	h.logger.Info("tables loaded",
		slog.Int("tables", len(tables)),
		slog.Int("entries", stats.TotalEntries))
	c.JSON(http.StatusOK, gin.H{
		"tables":  len(tables),
		"entries": stats.TotalEntries,
	})
}

// HandleReindex rebuilds the index snapshot from the loaded tables.
func (h *Handlers) HandleReindex(c *gin.Context) {
	stats := h.session.Rebuild()
	c.JSON(http.StatusOK, gin.H{"entries": stats.TotalEntries})
}

// HandleStats reports per-category entry counts.
func (h *Handlers) HandleStats(c *gin.Context) {
	stats := h.session.Snapshot().Stats()
	c.JSON(http.StatusOK, gin.H{
		"total":      stats.TotalEntries,
		"byCategory": stats.ByCategory,
		"builtAt":    stats.BuiltAt,
	})
}

// HandleHealth is the liveness check.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady reports readiness: the service is ready once an index
// snapshot with at least one entry exists.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.session.Snapshot().Empty() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no index built"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
