// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencrm-tools/crmchat/services/assistant/config"
)

func testBindings() []config.TableBinding {
	return []config.TableBinding{
		{ID: "companies", Name: "Firmy", Category: "company"},
		{ID: "contacts", Name: "Kontakty", Category: "contact"},
	}
}

// =============================================================================
// FetchTables Tests
// =============================================================================

func TestFetchTables_AllSucceed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/apps/app-1/tables/companies/data":
			w.Write([]byte(`[{"name":"Alza.cz"}]`))
		case "/apps/app-1/tables/contacts/data":
			w.Write([]byte(`{"items":[{"jmeno":"Jana"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "app-1", "secret-token")
	tables, err := c.FetchTables(context.Background(), testBindings())
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "Firmy", tables["companies"].Name)
	assert.Len(t, tables.RecordsFor("companies"), 1)
	assert.Len(t, tables.RecordsFor("contacts"), 1)
}

func TestFetchTables_PartialFailureTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/apps/app-1/tables/contacts/data" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"name":"Alza.cz"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "app-1", "secret-token")
	tables, err := c.FetchTables(context.Background(), testBindings())
	require.NoError(t, err, "one failing table must not fail the whole fetch")
	require.Len(t, tables, 1)
	assert.NotNil(t, tables["companies"])
	assert.Nil(t, tables["contacts"])
}

func TestFetchTables_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "app-1", "bad-token")
	_, err := c.FetchTables(context.Background(), testBindings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no table could be fetched")
}

func TestFetchTables_NoBindings(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "app-1", "secret-token")
	tables, err := c.FetchTables(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestFetchTables_InvalidJSONSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/apps/app-1/tables/contacts/data" {
			w.Write([]byte(`{not json`))
			return
		}
		w.Write([]byte(`[{"name":"Alza.cz"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "app-1", "secret-token")
	tables, err := c.FetchTables(context.Background(), testBindings())
	require.NoError(t, err)
	require.Len(t, tables, 1)
}

// =============================================================================
// Environment Construction Tests
// =============================================================================

func TestNewClientFromEnv_MissingURL(t *testing.T) {
	t.Setenv("CRM_API_URL", "")
	_, err := NewClientFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRM_API_URL")
}

func TestNewClientFromEnv_Complete(t *testing.T) {
	t.Setenv("CRM_API_URL", "https://crm.example.com/api/")
	t.Setenv("CRM_APP_ID", "app-1")
	t.Setenv("CRM_API_TOKEN", "secret-token")

	c, err := NewClientFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com/api", c.baseURL, "trailing slash trimmed")
}
