package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/uxlens/uxlens/internal/config"
	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/domain/capability"
	"github.com/uxlens/uxlens/internal/knowledge"
	logpkg "github.com/uxlens/uxlens/internal/logger"
	"github.com/uxlens/uxlens/internal/metrics"
	guidelinerepo "github.com/uxlens/uxlens/internal/repository/guideline"
	chiTransport "github.com/uxlens/uxlens/internal/transport/chi"
	genaiVision "github.com/uxlens/uxlens/internal/transport/genai"
	openaiEmb "github.com/uxlens/uxlens/internal/transport/openai"
	analysisuc "github.com/uxlens/uxlens/internal/usecase/analysis"
	searchuc "github.com/uxlens/uxlens/internal/usecase/search"
	"github.com/uxlens/uxlens/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting uxlens API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	// Guideline store
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

	// The store is an availability tier, not a hard dependency: if it is
	// down, the cascade serves from the offline index.
	ctx := context.Background()
	readyTimeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readyTimeout); err != nil {
		logger.Warn("Guideline store not ready, starting degraded", zap.Error(err))
	} else {
		logger.Info("Connected to guideline store")
		if err := store.EnsureIndex(ctx); err != nil {
			if errors.Is(err, domain.ErrCapabilityNotFound) {
				logger.Warn("Store lacks search index support, vector tiers disabled", zap.Error(err))
			} else {
				logger.Warn("Failed to ensure search index", zap.Error(err))
			}
		}
	}

	// Embedding provider
	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
	})
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Vision provider
	vision, err := genaiVision.NewVision(ctx, &genaiVision.Config{
		APIKey: cfg.Vision.APIKey,
		Model:  cfg.Vision.Model,
	})
	if err != nil {
		logger.Fatal("Failed to create vision provider", zap.Error(err))
	}

	// Offline knowledge index (embedded corpus)
	offline := knowledge.MustLoad()
	logger.Info("Offline knowledge index loaded",
		zap.Int("entries", offline.Stats().TotalItems))

	// Capability cache shared by all search entry points
	caps := capability.NewCache()

	engine := searchuc.NewEngine(store, embedder, offline, caps, searchuc.Tuning{
		Alpha:       cfg.Search.Alpha,
		Decay:       cfg.Search.Decay,
		CallTimeout: time.Duration(cfg.Search.CallTimeoutSec) * time.Second,
	})
	analyzer := analysisuc.New(vision, engine)

	server := chiTransport.NewServer(engine, analyzer, offline, store, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
