// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embed

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// cacheKeyPrefix namespaces embedding entries in a shared database.
const cacheKeyPrefix = "crmchat:embed:"

// defaultCacheTTL expires cached vectors after a week; a re-warm on a
// stale corpus is cheap compared to serving vectors for renamed records.
const defaultCacheTTL = 7 * 24 * time.Hour

// errCacheMiss distinguishes "not cached" from real storage failures.
var errCacheMiss = errors.New("embedding cache miss")

// VectorStore persists a warmed name-vector set keyed by corpus hash.
type VectorStore interface {
	// Load returns the vector set for corpusHash, or (nil, false, nil) on
	// a miss.
	Load(corpusHash string) (map[string][]float32, bool, error)

	// Save persists the vector set under corpusHash.
	Save(corpusHash string, vectors map[string][]float32) error
}

// BadgerVectorStore is the BadgerDB-backed VectorStore.
//
// Thread Safety: Safe for concurrent use; Badger transactions provide
// isolation.
type BadgerVectorStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerVectorStore wraps an open database. A zero ttl uses the
// default.
func NewBadgerVectorStore(db *badger.DB, ttl time.Duration) *BadgerVectorStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &BadgerVectorStore{db: db, ttl: ttl}
}

// Load implements VectorStore.
func (s *BadgerVectorStore) Load(corpusHash string) (map[string][]float32, bool, error) {
	var vectors map[string][]float32
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + corpusHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&vectors)
		})
	})
	if errors.Is(err, errCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading embedding cache: %w", err)
	}
	return vectors, true, nil
}

// Save implements VectorStore.
func (s *BadgerVectorStore) Save(corpusHash string, vectors map[string][]float32) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vectors); err != nil {
		return fmt.Errorf("encoding embedding cache: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(cacheKeyPrefix+corpusHash), buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("saving embedding cache: %w", err)
	}
	return nil
}
