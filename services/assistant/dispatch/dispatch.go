// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dispatch routes classified queries to intent handlers and
// renders structured results. The dispatcher is the error boundary of the
// whole pipeline: it never lets a failure escape to the caller, converting
// anything unexpected into an error-intent result with a safe message.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/opencrm-tools/crmchat/services/assistant/classify"
	"github.com/opencrm-tools/crmchat/services/assistant/config"
	"github.com/opencrm-tools/crmchat/services/assistant/index"
	"github.com/opencrm-tools/crmchat/services/assistant/search"
	"github.com/opencrm-tools/crmchat/services/assistant/store"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crmchat",
		Subsystem: "dispatch",
		Name:      "queries_total",
		Help:      "Total dispatched queries by intent",
	}, []string{"intent"})

	queryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crmchat",
		Subsystem: "dispatch",
		Name:      "latency_seconds",
		Help:      "End-to-end query handling latency",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 2},
	}, []string{"intent"})

	dispatchPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crmchat",
		Subsystem: "dispatch",
		Name:      "panics_total",
		Help:      "Panics recovered at the dispatch boundary",
	})

	formatterOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crmchat",
		Subsystem: "dispatch",
		Name:      "formatter_outcomes_total",
		Help:      "Prose formatter outcomes (polished, fallback, skipped)",
	}, []string{"outcome"})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var dispatchTracer = otel.Tracer("crmchat.assistant.dispatch")

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// DataSource supplies the dispatcher's view of loaded data. Implementations
// must return complete, immutable values: either the old snapshot or the
// new one, never a partially built index.
type DataSource interface {
	Snapshot() *index.Snapshot
	Tables() store.TableSet
}

// ProseFormatter refines a locally computed response into prose. The call
// is additive: any error leaves the local response in effect.
type ProseFormatter interface {
	Polish(ctx context.Context, query string, payload any, localResponse string) (string, error)
}

// NameSimilarity offers an optional semantic nearest-name lookup used as a
// last resort by the general handler. May be unavailable at any time.
type NameSimilarity interface {
	NearestName(ctx context.Context, query string) (cat index.Category, name string, sim float64, ok bool)
}

// =============================================================================
// Result Types
// =============================================================================

// Payload is the sealed set of intent-specific result payloads.
type Payload interface{ isPayload() }

// CountPayload carries a count result.
type CountPayload struct {
	Category index.Category `json:"category,omitempty"`
	Count    int            `json:"count"`
	Label    string         `json:"label"`
}

// ListPayload carries a full-listing result.
type ListPayload struct {
	Category index.Category `json:"category,omitempty"`
	Records  []store.Record `json:"records"`
	Total    int            `json:"total"`
}

// SearchPayload carries name-search matches.
type SearchPayload struct {
	Category   index.Category `json:"category,omitempty"`
	EntityName string         `json:"entityName,omitempty"`
	Records    []store.Record `json:"records"`
}

// DetailPayload carries one fully rendered record.
type DetailPayload struct {
	Category index.Category `json:"category,omitempty"`
	Record   store.Record   `json:"record"`
}

// RelatedPayload carries a main record plus its cross-referenced records
// per category.
type RelatedPayload struct {
	MainName string                          `json:"mainName"`
	Main     store.Record                    `json:"main"`
	Related  map[index.Category][]store.Record `json:"related"`
}

// SystemPayload names the canned response that fired.
type SystemPayload struct {
	Keyword string `json:"keyword,omitempty"`
}

// GeneralPayload carries unscoped text-search hits.
type GeneralPayload struct {
	Hits []search.Hit `json:"hits"`
}

// ErrorPayload carries the terminal error state.
type ErrorPayload struct{}

func (CountPayload) isPayload()   {}
func (ListPayload) isPayload()    {}
func (SearchPayload) isPayload()  {}
func (DetailPayload) isPayload()  {}
func (RelatedPayload) isPayload() {}
func (SystemPayload) isPayload()  {}
func (GeneralPayload) isPayload() {}
func (ErrorPayload) isPayload()   {}

// Result is the dispatcher's answer to one query.
//
// Response is always valid standalone output; UseAI marks it as a
// candidate for remote prose refinement, never as incomplete.
type Result struct {
	Intent   classify.Intent
	Response string
	UseAI    bool
	Payload  Payload
}

// =============================================================================
// Dispatcher
// =============================================================================

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFormatter installs a remote prose formatter. Nil disables polishing.
func WithFormatter(f ProseFormatter) Option {
	return func(d *Dispatcher) { d.formatter = f }
}

// WithNameSimilarity installs the optional semantic name lookup.
func WithNameSimilarity(s NameSimilarity) Option {
	return func(d *Dispatcher) { d.similarity = s }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// Dispatcher routes classified queries to exactly one handler each.
//
// Thread Safety: Safe for concurrent use; per-query state lives on the
// stack and the data source returns immutable values.
type Dispatcher struct {
	classifier *classify.Classifier
	scorer     *search.Scorer
	data       DataSource
	bindings   map[index.Category]string
	limits     config.LimitsConfig
	formatter  ProseFormatter
	similarity NameSimilarity
	logger     *slog.Logger
}

// NewDispatcher wires a dispatcher from configuration and a data source.
func NewDispatcher(cfg *config.AssistantConfig, classifier *classify.Classifier, data DataSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier: classifier,
		scorer:     search.NewScorer(cfg.Scoring),
		data:       data,
		bindings:   cfg.Bindings(),
		limits:     cfg.Limits,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle answers one query.
//
// Description:
//
//	classify → dispatch to exactly one intent handler → optionally polish
//	through the remote formatter → return. Any panic raised anywhere in
//	the pipeline is recovered here and converted into the terminal error
//	result; the caller always receives a structured answer.
func (d *Dispatcher) Handle(ctx context.Context, query string) (result Result) {
	start := time.Now()
	ctx, span := dispatchTracer.Start(ctx, "dispatch.Handle")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			dispatchPanicsTotal.Inc()
			d.logger.Error("query dispatch panicked",
				slog.String("query", truncateForLog(query, 120)),
				slog.Any("panic", r))
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
			result = errorResult()
		}
		queriesTotal.WithLabelValues(result.Intent.String()).Inc()
		queryLatency.WithLabelValues(result.Intent.String()).Observe(time.Since(start).Seconds())
	}()

	analysis := d.classifier.Analyze(query)
	span.SetAttributes(
		attribute.String("query.intent", analysis.Intent.String()),
		attribute.String("query.category", string(analysis.Category)),
		attribute.Bool("query.has_entity_name", analysis.EntityName != ""),
	)

	result = d.dispatch(ctx, analysis)
	result = d.polish(ctx, analysis, result)

	d.logger.Debug("query handled",
		slog.String("intent", result.Intent.String()),
		slog.String("category", string(analysis.Category)),
		slog.Bool("use_ai", result.UseAI),
		slog.Duration("elapsed", time.Since(start)))
	return result
}

// dispatch selects the single handler for the analyzed intent. The switch
// is exhaustive over the classifier's output intents.
func (d *Dispatcher) dispatch(ctx context.Context, a classify.Analysis) Result {
	switch a.Intent {
	case classify.IntentSystem:
		return d.handleSystem(a)
	case classify.IntentCount:
		return d.handleCount(a)
	case classify.IntentListAll:
		return d.handleListAll(a)
	case classify.IntentSearchSpecific:
		return d.handleSearch(a)
	case classify.IntentGetDetails:
		return d.handleDetails(a)
	case classify.IntentFindRelated:
		return d.handleRelated(a)
	case classify.IntentGeneral:
		return d.handleGeneral(ctx, a)
	case classify.IntentError:
		return errorResult()
	default:
		return errorResult()
	}
}

// polish runs the optional remote formatting step.
//
// Counts are never polished and a missing formatter is not an error; on
// any formatter failure the already-computed local response stands.
func (d *Dispatcher) polish(ctx context.Context, a classify.Analysis, res Result) Result {
	if !res.UseAI {
		return res
	}
	if d.formatter == nil {
		formatterOutcomes.WithLabelValues("skipped").Inc()
		return res
	}
	polished, err := d.formatter.Polish(ctx, a.Query, res.Payload, res.Response)
	if err != nil || polished == "" {
		if err != nil {
			d.logger.Warn("prose formatter failed, keeping local response",
				slog.String("intent", res.Intent.String()),
				slog.String("error", err.Error()))
		}
		formatterOutcomes.WithLabelValues("fallback").Inc()
		return res
	}
	formatterOutcomes.WithLabelValues("polished").Inc()
	res.Response = polished
	return res
}

// errorResult is the terminal error-state result.
func errorResult() Result {
	return Result{
		Intent:   classify.IntentError,
		Response: msgDispatchError,
		UseAI:    false,
		Payload:  ErrorPayload{},
	}
}

// truncateForLog caps a string for log output.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
