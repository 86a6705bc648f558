// Command uxlens-ingest seeds the guideline store from the bundled knowledge
// snapshots: each guideline is embedded and upserted with its vector, so the
// hybrid search tiers have a corpus to query.
package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/uxlens/uxlens/internal/config"
	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/knowledge"
	logpkg "github.com/uxlens/uxlens/internal/logger"
	"github.com/uxlens/uxlens/internal/metrics"
	guidelinerepo "github.com/uxlens/uxlens/internal/repository/guideline"
	openaiEmb "github.com/uxlens/uxlens/internal/transport/openai"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "load and embed without writing to the store")
	flag.Parse()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterEmbeddingMetrics()

	corpus := knowledge.MustLoad()
	docs := corpus.Documents()
	logger.Info("Loaded knowledge snapshots", zap.Int("documents", len(docs)))

	store, err := guidelinerepo.NewStore(guidelinerepo.Config{
		Addrs:     cfg.Database.Addrs,
		Password:  cfg.Database.Password,
		KeyPrefix: cfg.Storage.KeyPrefix,
		VectorDim: cfg.Embedding.Dimensions,
	})
	if err != nil {
		logger.Fatal("Failed to create guideline store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	readyTimeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readyTimeout); err != nil {
		logger.Fatal("Guideline store not ready", zap.Error(err))
	}

	if err := store.EnsureIndex(ctx); err != nil {
		if errors.Is(err, domain.ErrCapabilityNotFound) {
			logger.Warn("Store lacks search index support, documents will only serve scan tiers",
				zap.Error(err))
		} else {
			logger.Fatal("Failed to create search index", zap.Error(err))
		}
	}

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
	})

	var stored, failed int
	for _, doc := range docs {
		res, err := embedder.Embed(ctx, doc.Content)
		if err != nil {
			// One failed embedding does not abort the run; the document is
			// still reachable through the text tiers.
			logger.Warn("Embedding failed, storing without vector",
				zap.Int64("id", doc.ID), zap.Error(err))
			failed++
		} else {
			doc.Embedding = res.Embedding
		}

		if *dryRun {
			continue
		}
		if err := store.Upsert(ctx, doc); err != nil {
			logger.Error("Upsert failed", zap.Int64("id", doc.ID), zap.Error(err))
			failed++
			continue
		}
		stored++
	}

	logger.Info("Ingestion finished",
		zap.Int("stored", stored),
		zap.Int("failed", failed),
		zap.Bool("dry_run", *dryRun),
	)
}
