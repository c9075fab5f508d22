package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kareline/raggate/internal/config"
	dbRedis "github.com/kareline/raggate/internal/db/redis"
	"github.com/kareline/raggate/internal/domain"
	logpkg "github.com/kareline/raggate/internal/logger"
	"github.com/kareline/raggate/internal/metrics"
	"github.com/kareline/raggate/internal/repository/hits"
	"github.com/kareline/raggate/internal/repository/resultcache"
	chiTransport "github.com/kareline/raggate/internal/transport/chi"
	openaiTransport "github.com/kareline/raggate/internal/transport/openai"
	answeruc "github.com/kareline/raggate/internal/usecase/answer"
	"github.com/kareline/raggate/internal/usecase/breaker"
	"github.com/kareline/raggate/internal/usecase/cachekey"
	healthuc "github.com/kareline/raggate/internal/usecase/health"
	raguc "github.com/kareline/raggate/internal/usecase/rag"
	"github.com/kareline/raggate/internal/usecase/ratelimit"
	"github.com/kareline/raggate/internal/usecase/rerank"
	"github.com/kareline/raggate/internal/usecase/retry"
	"github.com/kareline/raggate/internal/version"
)

func main() {
	// Optional .env for local development; ignored when absent
	_ = godotenv.Load()

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

	logger.Info("Starting raggate gateway",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("collection", cfg.Vector.Collection),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register gateway metrics explicitly (no init())
	metrics.RegisterGatewayMetrics()

	// Vector backend
	hitsRepo := hits.New(store, cfg.Cache.KeyPrefix, cfg.Vector.Collection).
		WithHNSW(hits.HNSWConfig{
			M:           cfg.Vector.HNSWM,
			EFConstruct: cfg.Vector.HNSWEFConstruct,
		})
	if err := hitsRepo.EnsureIndex(ctx, cfg.Vector.Dimensions); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}
	logger.Info("Vector index ready",
		zap.String("collection", cfg.Vector.Collection),
		zap.Int("dimensions", cfg.Vector.Dimensions),
	)

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	// Optional LLM capabilities: absent without an API key, and every
	// consumer degrades gracefully.
	var chatScorer rerank.Scorer
	var answerGen answeruc.Generator
	if cfg.LLM.APIKey != "" {
		chat := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
		chatScorer = chat
		answerGen = chat
		logger.Info("LLM capabilities enabled", zap.String("model", cfg.LLM.Model))
	} else {
		logger.Info("LLM capabilities disabled, rerank is passthrough and answers are extractive")
	}

	keySvc := cachekey.New(store, cfg.Cache.KeyPrefix)
	cacheRepo := resultcache.New(store, logger)
	rerankSvc := rerank.New(chatScorer, logger)
	brk := breaker.New()

	pipeline := raguc.New(
		keySvc,
		cacheRepo,
		embedder,
		hitsRepo,
		hitsRepo,
		rerankSvc,
		brk,
		raguc.Options{
			CacheTTL:   time.Duration(cfg.Cache.TTLSec) * time.Second,
			EmptyTTL:   time.Duration(cfg.Cache.EmptyTTLSec) * time.Second,
			TripWindow: time.Duration(cfg.Breaker.TripSec) * time.Second,
			Retry: retry.Policy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				Base:        time.Duration(cfg.Retry.BaseMs) * time.Millisecond,
				Cap:         time.Duration(cfg.Retry.CapMs) * time.Millisecond,
			},
			ChunkWords:  cfg.Chunking.MaxWords,
			ChunkStride: cfg.Chunking.Overlap,
		},
		logger,
	)

	answerSvc := answeruc.New(answerGen, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), brk)
	limiter := ratelimit.New(store, cfg.RateLimit.PerMinute, logger)

	server := chiTransport.NewServer(pipeline, answerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.MaxBytesMiddleware(int64(cfg.HTTP.MaxRequestBytes)))
	r.Use(chiTransport.APIKeyMiddleware(cfg.Auth.APIKey))
	r.Use(chiTransport.RateLimitMiddleware(limiter))
	r.Use(metrics.Middleware())

	r.Get("/health", server.HealthCheck)
	r.Get("/metrics", server.Metrics)
	r.Post("/ingest", server.Ingest)
	r.Post("/ingest_batch", server.IngestBatch)
	r.Post("/rag", server.Rag)
	r.Post("/answer", server.Answer)

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

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
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
						"error": "internal_error",
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

			// chi.middleware.RequestID already placed request_id in context
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
