// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package crm fetches table data from the remote CRM-style REST API. Raw
// payloads are passed downstream untouched; shape normalization is the
// record store's job.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencrm-tools/crmchat/services/assistant/config"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

const (
	// fetchConcurrency bounds parallel table downloads.
	fetchConcurrency = 4

	fetchTimeout = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client downloads table data payloads.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	baseURL    string
	appID      string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for one CRM application.
func NewClient(baseURL, appID, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		token:      token,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromEnv creates a client from CRM_API_URL, CRM_APP_ID and
// CRM_API_TOKEN (the token falling back to the container secret).
func NewClientFromEnv(opts ...Option) (*Client, error) {
	baseURL := os.Getenv("CRM_API_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("crm: CRM_API_URL is not set")
	}
	appID := os.Getenv("CRM_APP_ID")
	if appID == "" {
		return nil, fmt.Errorf("crm: CRM_APP_ID is not set")
	}
	token := os.Getenv("CRM_API_TOKEN")
	if token == "" {
		if content, err := os.ReadFile("/run/secrets/crm_api_token"); err == nil {
			token = strings.TrimSpace(string(content))
		}
	}
	if token == "" {
		return nil, fmt.Errorf("crm: API token is missing (CRM_API_TOKEN)")
	}
	return NewClient(baseURL, appID, token, opts...), nil
}

// FetchTables downloads every bound table concurrently.
//
// Description:
//
//	Tables download in parallel (bounded by fetchConcurrency). Partial
//	failure is tolerated by design: a table that cannot be fetched is
//	logged and skipped, and the returned TableSet holds whatever
//	succeeded. The error is non-nil only when not a single table could
//	be fetched.
func (c *Client) FetchTables(ctx context.Context, bindings []config.TableBinding) (store.TableSet, error) {
	tables := make(store.TableSet, len(bindings))
	var tablesMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, fetchConcurrency)
	for _, binding := range bindings {
		binding := binding
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			payload, err := c.fetchTable(gctx, binding.ID)
			if err != nil {
				c.logger.Warn("table fetch failed, skipping",
					slog.String("table", binding.ID),
					slog.String("error", err.Error()))
				return nil
			}
			tablesMu.Lock()
			tables[binding.ID] = &store.Table{ID: binding.ID, Name: binding.Name, Data: payload}
			tablesMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching tables: %w", err)
	}
	if len(tables) == 0 && len(bindings) > 0 {
		return nil, fmt.Errorf("fetching tables: no table could be fetched")
	}

	c.logger.Info("tables fetched",
		slog.Int("requested", len(bindings)),
		slog.Int("loaded", len(tables)))
	return tables, nil
}

// fetchTable downloads one table's raw data payload.
func (c *Client) fetchTable(ctx context.Context, tableID string) (any, error) {
	url := fmt.Sprintf("%s/apps/%s/tables/%s/data", c.baseURL, c.appID, tableID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drained, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(drained))
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return payload, nil
}
