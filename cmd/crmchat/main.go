// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command crmchat runs the CRM chat assistant.
//
// The assistant answers natural-language (Czech) questions about CRM
// records: counts, listings, name search, record details and related
// records. All answers are computed locally from in-memory data; a remote
// language model is only ever used to polish an already-computed answer.
//
// Usage:
//
//	# HTTP API on :8080
//	go run ./cmd/crmchat serve
//
//	# One-shot question against the remote CRM
//	CRM_API_URL=... CRM_APP_ID=... CRM_API_TOKEN=... \
//	  go run ./cmd/crmchat ask "Kolik firem je v systému?"
//
// Example requests:
//
//	# Load data
//	curl -X PUT http://localhost:8080/v1/assist/tables \
//	  -H "Content-Type: application/json" \
//	  -d '{"companies": {"name": "Firmy", "data": [{"name": "Alza.cz"}]}}'
//
//	# Ask
//	curl -X POST http://localhost:8080/v1/assist/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "Kolik firem je v systému?"}'
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/opencrm-tools/crmchat/services/assistant"
	"github.com/opencrm-tools/crmchat/services/assistant/classify"
	"github.com/opencrm-tools/crmchat/services/assistant/config"
	"github.com/opencrm-tools/crmchat/services/assistant/dispatch"
	"github.com/opencrm-tools/crmchat/services/assistant/embed"
	"github.com/opencrm-tools/crmchat/services/crm"
	"github.com/opencrm-tools/crmchat/services/llm"
	"github.com/opencrm-tools/crmchat/services/storage/badgerdb"
)

var (
	servePort      int
	debugMode      bool
	fetchOnBoot    bool
	withEmbeddings bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crmchat",
		Short: "CRM chat assistant",
		Long:  "Answers natural-language questions about CRM records using a local query-understanding engine.",
	}
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Run:   runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&fetchOnBoot, "fetch", false, "Fetch CRM tables on startup (requires CRM_* env)")
	serveCmd.Flags().BoolVar(&withEmbeddings, "with-embeddings", false, "Warm the name embedding cache after loading data")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Fetch CRM data and answer one question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	}

	rootCmd.AddCommand(serveCmd, askCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog default.
func setupLogging() {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildDispatcher wires the query pipeline from configuration.
func buildDispatcher(cfg *config.AssistantConfig, session *assistant.Session, sim dispatch.NameSimilarity) *dispatch.Dispatcher {
	classifier := classify.NewClassifier(classify.NewSynonymResolver(cfg.Synonyms()))

	opts := []dispatch.Option{}
	formatter, err := llm.NewFormatterFromEnv(slog.Default())
	if err != nil {
		slog.Warn("Prose formatter unavailable", slog.String("error", err.Error()))
	} else if formatter != nil {
		opts = append(opts, dispatch.WithFormatter(formatter))
		slog.Info("Prose formatter enabled")
	}
	if sim != nil {
		opts = append(opts, dispatch.WithNameSimilarity(sim))
	}
	return dispatch.NewDispatcher(cfg, classifier, session, opts...)
}

func runServe(_ *cobra.Command, _ []string) {
	setupLogging()
	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := config.MustLoad()
	session := assistant.NewSession(cfg, slog.Default())

	// Embedding cache with BadgerDB persistence. Graceful degradation: if
	// the cache database is unavailable, lookups stay in-memory only.
	var embedCache *embed.NameEmbeddingCache
	var embedDB *badger.DB
	if withEmbeddings {
		embedCache = setupEmbeddings(&embedDB)
	}

	var sim dispatch.NameSimilarity
	if embedCache != nil {
		sim = embedCache
	}
	dispatcher := buildDispatcher(cfg, session, sim)
	handlers := assistant.NewHandlers(session, dispatcher, slog.Default())

	if fetchOnBoot {
		client, err := crm.NewClientFromEnv()
		if err != nil {
			slog.Warn("CRM fetch disabled", slog.String("error", err.Error()))
		} else if tables, err := client.FetchTables(context.Background(), cfg.Tables); err != nil {
			slog.Warn("CRM fetch failed, starting without data", slog.String("error", err.Error()))
		} else {
			session.LoadTables(tables)
			if embedCache != nil {
				if err := embedCache.Warm(context.Background(), session.Snapshot()); err != nil {
					slog.Warn("Embedding warm-up failed", slog.String("error", err.Error()))
				}
			}
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("crmchat"))
	if debugMode {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down crmchat server")
		if embedDB != nil {
			if err := embedDB.Close(); err != nil {
				slog.Warn("Failed to close embedding cache DB", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", servePort)
	slog.Info("Starting crmchat server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupEmbeddings opens the persistent vector cache. The returned cache is
// usable even when the database failed to open.
func setupEmbeddings(dbOut **badger.DB) *embed.NameEmbeddingCache {
	opts := []embed.Option{}
	if url := os.Getenv("EMBED_ENDPOINT"); url != "" {
		opts = append(opts, embed.WithEndpoint(url))
	}
	if model := os.Getenv("EMBED_MODEL"); model != "" {
		opts = append(opts, embed.WithModel(model))
	}

	cacheDir := os.Getenv("EMBED_CACHE_DIR")
	if cacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheDir = filepath.Join(home, ".crmchat", "cache", "embeddings")
		}
	}
	if cacheDir != "" {
		if db, err := badgerdb.Open(cacheDir); err != nil {
			slog.Warn("Embedding cache DB unavailable, persistence disabled",
				slog.String("path", cacheDir),
				slog.String("error", err.Error()))
		} else {
			*dbOut = db
			opts = append(opts, embed.WithVectorStore(embed.NewBadgerVectorStore(db, 0)))
			slog.Info("Embedding cache DB opened", slog.String("path", cacheDir))
		}
	}
	return embed.NewNameEmbeddingCache(opts...)
}

func runAsk(_ *cobra.Command, args []string) {
	setupLogging()

	question := ""
	for i, arg := range args {
		if i > 0 {
			question += " "
		}
		question += arg
	}

	cfg := config.MustLoad()
	session := assistant.NewSession(cfg, slog.Default())

	client, err := crm.NewClientFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tables, err := client.FetchTables(context.Background(), cfg.Tables)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	session.LoadTables(tables)

	dispatcher := buildDispatcher(cfg, session, nil)
	result := dispatcher.Handle(context.Background(), question)
	fmt.Println(result.Response)
}
