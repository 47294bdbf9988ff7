// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assistant owns the session state (loaded tables plus the
// current index snapshot) and exposes the HTTP surface.
package assistant

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opencrm-tools/crmchat/services/assistant/config"
	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

var indexRebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crmchat",
	Subsystem: "assistant",
	Name:      "index_rebuilds_total",
	Help:      "Completed index snapshot rebuilds",
})

// Session is the explicit state object for one loaded dataset.
//
// Description:
//
//	Holds the current TableSet and index snapshot. Rebuilds construct a
//	complete new snapshot and publish it with a single atomic store, so
//	queries in flight keep reading the old snapshot and no reader ever
//	observes a partially built index. Loading and rebuilding are
//	serialized by a mutex; readers take no lock at all.
type Session struct {
	builder *index.Builder
	logger  *slog.Logger

	loadMu   sync.Mutex
	tables   atomic.Pointer[store.TableSet]
	snapshot atomic.Pointer[index.Snapshot]
}

// NewSession creates an empty session for the configured bindings.
func NewSession(cfg *config.AssistantConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		builder: index.NewBuilder(cfg.Bindings()),
		logger:  logger,
	}
	empty := store.TableSet{}
	s.tables.Store(&empty)
	s.snapshot.Store(&index.Snapshot{})
	return s
}

// Snapshot returns the current index snapshot. Never nil.
func (s *Session) Snapshot() *index.Snapshot {
	return s.snapshot.Load()
}

// Tables returns the currently loaded tables. Never nil.
func (s *Session) Tables() store.TableSet {
	return *s.tables.Load()
}

// LoadTables replaces the loaded dataset and rebuilds the index.
func (s *Session) LoadTables(tables store.TableSet) index.Stats {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if tables == nil {
		tables = store.TableSet{}
	}
	s.tables.Store(&tables)
	return s.rebuildLocked()
}

// Rebuild reindexes the currently loaded tables. Safe to call while
// queries are being served.
func (s *Session) Rebuild() index.Stats {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.rebuildLocked()
}

func (s *Session) rebuildLocked() index.Stats {
	snap := s.builder.Build(*s.tables.Load())
	s.snapshot.Store(snap)
	indexRebuildsTotal.Inc()

	stats := snap.Stats()
	s.logger.Info("index rebuilt", slog.Int("entries", stats.TotalEntries))
	return stats
}
