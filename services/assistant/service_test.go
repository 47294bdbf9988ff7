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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/opencrm-tools/crmchat/services/assistant/classify"
	"github.com/opencrm-tools/crmchat/services/assistant/config"
	"github.com/opencrm-tools/crmchat/services/assistant/dispatch"
	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

const sessionConfigYAML = `
tables:
  - id: companies
    name: Firmy
    category: company
  - id: contacts
    name: Kontakty
    category: contact
  - id: activities
    name: Aktivity
    category: activity
  - id: deals
    name: Obchody
    category: deal
`

func sessionConfig(t *testing.T) *config.AssistantConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(sessionConfigYAML))
	if err != nil {
		t.Fatalf("parsing session config: %v", err)
	}
	return cfg
}

func sessionTables() store.TableSet {
	return store.TableSet{
		"companies": &store.Table{ID: "companies", Name: "Firmy", Data: []any{
			map[string]any{"name": "Alza.cz", "city": "Praha"},
			map[string]any{"name": "Mall.cz"},
		}},
		"contacts": &store.Table{ID: "contacts", Name: "Kontakty", Data: []any{
			map[string]any{"jmeno": "Jana", "prijmeni": "Nováková"},
		}},
	}
}

// =============================================================================
// Session Tests
// =============================================================================

func TestSession_StartsEmptyButUsable(t *testing.T) {
	s := NewSession(sessionConfig(t), nil)

	if s.Snapshot() == nil {
		t.Fatal("snapshot must never be nil")
	}
	if !s.Snapshot().Empty() {
		t.Error("fresh session snapshot must be empty")
	}
	if s.Tables() == nil {
		t.Error("tables must never be nil")
	}
}

func TestSession_LoadTablesRebuildsIndex(t *testing.T) {
	s := NewSession(sessionConfig(t), nil)

	stats := s.LoadTables(sessionTables())
	if stats.TotalEntries != 3 {
		t.Errorf("total entries = %d, want 3", stats.TotalEntries)
	}
	if stats.ByCategory[index.CategoryCompany] != 2 {
		t.Errorf("company entries = %d, want 2", stats.ByCategory[index.CategoryCompany])
	}
	if s.Snapshot().Empty() {
		t.Error("snapshot still empty after load")
	}
}

func TestSession_LoadNilTablesClears(t *testing.T) {
	s := NewSession(sessionConfig(t), nil)
	s.LoadTables(sessionTables())

	stats := s.LoadTables(nil)
	if stats.TotalEntries != 0 {
		t.Errorf("total entries = %d, want 0", stats.TotalEntries)
	}
	if !s.Snapshot().Empty() {
		t.Error("snapshot not cleared")
	}
}

func TestSession_SnapshotSwapIsAtomic(t *testing.T) {
	s := NewSession(sessionConfig(t), nil)
	s.LoadTables(sessionTables())

	// Readers racing concurrent rebuilds must always see a complete
	// snapshot: either 0 or 3 entries, never an in-between count.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.LoadTables(sessionTables())
			s.Rebuild()
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			total := s.Snapshot().Stats().TotalEntries
			if total != 0 && total != 3 {
				t.Errorf("observed partial snapshot with %d entries", total)
				return
			}
		}
	}()

	wg.Wait()
}

// =============================================================================
// HTTP Surface Tests
// =============================================================================

func testRouter(t *testing.T) (*gin.Engine, *Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := sessionConfig(t)
	session := NewSession(cfg, nil)
	dispatcher := dispatch.NewDispatcher(cfg, classify.NewClassifier(), session)
	handlers := NewHandlers(session, dispatcher, nil)

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), handlers)
	return router, session
}

func TestHandleQuery(t *testing.T) {
	router, session := testRouter(t)
	session.LoadTables(sessionTables())

	body := bytes.NewBufferString(`{"query": "Kolik firem je v systému?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/assist/query", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID       string `json:"id"`
		Intent   string `json:"intent"`
		Response string `json:"response"`
		UseAI    bool   `json:"useAI"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Intent != "count" {
		t.Errorf("intent = %q, want count", resp.Intent)
	}
	if resp.Response != "V databázi je celkem 2 firem." {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.UseAI {
		t.Error("count must report useAI=false")
	}
	if resp.ID == "" {
		t.Error("missing response id")
	}
}

func TestHandleQuery_MissingBody(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/assist/query", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleLoadTables(t *testing.T) {
	router, session := testRouter(t)

	payload := `{"companies": {"name": "Firmy", "data": [{"name": "Alza.cz"}]}}`
	req := httptest.NewRequest(http.MethodPut, "/v1/assist/tables", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if session.Snapshot().Stats().TotalEntries != 1 {
		t.Errorf("entries = %d, want 1", session.Snapshot().Stats().TotalEntries)
	}
}

func TestHandleReady(t *testing.T) {
	router, session := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/assist/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("empty session readiness = %d, want 503", w.Code)
	}

	session.LoadTables(sessionTables())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/assist/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("loaded session readiness = %d, want 200", w.Code)
	}
}

func TestHandleStats(t *testing.T) {
	router, session := testRouter(t)
	session.LoadTables(sessionTables())

	req := httptest.NewRequest(http.MethodGet, "/v1/assist/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
}
