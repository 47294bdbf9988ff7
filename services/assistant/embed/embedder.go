// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embed precomputes embedding vectors for indexed record names,
// offering an optional semantic nearest-name lookup. The whole package is
// best-effort: an unwarmed or failing cache scores nothing and the
// deterministic matching tiers stand alone.
package embed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencrm-tools/crmchat/services/assistant/index"
)

const (
	// warmConcurrency bounds parallel embedding requests during Warm.
	warmConcurrency = 10

	// embedTimeout bounds one embedding HTTP call.
	embedTimeout = 10 * time.Second

	defaultEndpoint = "http://localhost:11434/api/embed"
	defaultModel    = "nomic-embed-text"
)

// keySep joins category and name into one vector key. NUL never occurs in
// record names.
const keySep = "\x00"

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Option configures a NameEmbeddingCache.
type Option func(*NameEmbeddingCache)

// WithEndpoint overrides the embedding endpoint.
func WithEndpoint(url string) Option {
	return func(c *NameEmbeddingCache) { c.endpoint = url }
}

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(c *NameEmbeddingCache) { c.model = model }
}

// WithVectorStore installs persistent storage for warmed vectors.
func WithVectorStore(store VectorStore) Option {
	return func(c *NameEmbeddingCache) { c.store = store }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *NameEmbeddingCache) { c.logger = logger }
}

// NameEmbeddingCache holds one unit-normalized vector per indexed
// canonical name.
//
// Thread Safety: Safe for concurrent use; the vector map is guarded by an
// RWMutex and replaced wholesale by Warm.
type NameEmbeddingCache struct {
	endpoint   string
	model      string
	httpClient *http.Client
	store      VectorStore
	logger     *slog.Logger

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewNameEmbeddingCache creates an empty cache. Until Warm succeeds every
// lookup reports no result.
func NewNameEmbeddingCache(opts ...Option) *NameEmbeddingCache {
	c := &NameEmbeddingCache{
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: embedTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warm embeds every canonical name in the snapshot.
//
// Description:
//
//	Computes a corpus hash over the snapshot's names and the model name,
//	loads a persisted vector set when the hash matches, and otherwise
//	embeds names in parallel (bounded by warmConcurrency) and persists
//	the result. Individual embedding failures are logged and skipped;
//	Warm only fails outright when every request fails or the context is
//	canceled.
func (c *NameEmbeddingCache) Warm(ctx context.Context, snap *index.Snapshot) error {
	names := collectNames(snap)
	if len(names) == 0 {
		return nil
	}
	corpusHash := c.corpusHash(names)

	if c.store != nil {
		if cached, ok, err := c.store.Load(corpusHash); err != nil {
			c.logger.Warn("embedding cache load failed", slog.String("error", err.Error()))
		} else if ok {
			c.install(cached)
			c.logger.Info("embedding cache restored",
				slog.Int("vectors", len(cached)),
				slog.String("corpus", shortHash(corpusHash)))
			return nil
		}
	}

	vectors := make(map[string][]float32, len(names))
	var vectorsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, warmConcurrency)
	for _, key := range names {
		key := key
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			_, name := splitKey(key)
			vec, err := c.embedText(gctx, name)
			if err != nil {
				c.logger.Warn("embedding failed, skipping name",
					slog.String("name", name),
					slog.String("error", err.Error()))
				return nil
			}
			vectorsMu.Lock()
			vectors[key] = vec
			vectorsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("warming embedding cache: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("warming embedding cache: no name could be embedded")
	}

	c.install(vectors)
	if c.store != nil {
		if err := c.store.Save(corpusHash, vectors); err != nil {
			c.logger.Warn("embedding cache save failed", slog.String("error", err.Error()))
		}
	}
	c.logger.Info("embedding cache warmed",
		slog.Int("vectors", len(vectors)),
		slog.Int("names", len(names)),
		slog.String("corpus", shortHash(corpusHash)))
	return nil
}

// NearestName returns the indexed name most similar to the query.
//
// The bool result is false whenever the cache is cold, the query cannot
// be embedded, or there are no vectors; callers fall back to their
// deterministic paths.
func (c *NameEmbeddingCache) NearestName(ctx context.Context, query string) (index.Category, string, float64, bool) {
	c.mu.RLock()
	empty := len(c.vectors) == 0
	c.mu.RUnlock()
	if empty {
		return "", "", 0, false
	}

	queryVec, err := c.embedText(ctx, query)
	if err != nil {
		c.logger.Debug("query embedding failed", slog.String("error", err.Error()))
		return "", "", 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	bestKey := ""
	bestSim := -1.0
	for key, vec := range c.vectors {
		if sim := dotProduct(queryVec, vec); sim > bestSim {
			bestSim = sim
			bestKey = key
		}
	}
	if bestKey == "" {
		return "", "", 0, false
	}
	cat, name := splitKey(bestKey)
	return index.Category(cat), name, bestSim, true
}

// install atomically replaces the vector map.
func (c *NameEmbeddingCache) install(vectors map[string][]float32) {
	c.mu.Lock()
	c.vectors = vectors
	c.mu.Unlock()
}

// embedText fetches one unit-normalized embedding vector.
func (c *NameEmbeddingCache) embedText(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drained, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(drained))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing embed response: %w", err)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed endpoint returned no vector")
	}
	return normalize(parsed.Embeddings[0]), nil
}

// corpusHash fingerprints the name set plus the model, so a model change
// invalidates persisted vectors.
func (c *NameEmbeddingCache) corpusHash(sortedKeys []string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	for _, key := range sortedKeys {
		h.Write([]byte(key))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// collectNames returns sorted "category\x00name" keys for every canonical
// name in the snapshot.
func collectNames(snap *index.Snapshot) []string {
	seen := make(map[string]struct{})
	for _, cat := range index.AllCategories() {
		for _, entry := range snap.Entries(cat) {
			name := entry.CanonicalName()
			if name == "" {
				continue
			}
			seen[string(cat)+keySep+name] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitKey(key string) (cat, name string) {
	if i := strings.Index(key, keySep); i >= 0 {
		return key[:i], key[i+len(keySep):]
	}
	return "", key
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// dotProduct of two unit vectors is their cosine similarity.
func dotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return -1
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize scales a vector to unit length so similarity reduces to a dot
// product.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
