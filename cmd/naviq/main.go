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
	"go.uber.org/zap"

	"github.com/kailas-cloud/naviq/internal/config"
	dbRedis "github.com/kailas-cloud/naviq/internal/db/redis"
	"github.com/kailas-cloud/naviq/internal/domain"
	logpkg "github.com/kailas-cloud/naviq/internal/logger"
	"github.com/kailas-cloud/naviq/internal/metrics"
	"github.com/kailas-cloud/naviq/internal/prompt"
	auditrepo "github.com/kailas-cloud/naviq/internal/repository/audit"
	permissionrepo "github.com/kailas-cloud/naviq/internal/repository/permission"
	recordrepo "github.com/kailas-cloud/naviq/internal/repository/record"
	chiTransport "github.com/kailas-cloud/naviq/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/naviq/internal/transport/openai"
	"github.com/kailas-cloud/naviq/internal/transport/retry"
	backfilluc "github.com/kailas-cloud/naviq/internal/usecase/backfill"
	hybriduc "github.com/kailas-cloud/naviq/internal/usecase/hybrid"
	permissionuc "github.com/kailas-cloud/naviq/internal/usecase/permission"
	retrievaluc "github.com/kailas-cloud/naviq/internal/usecase/retrieval"
	structureduc "github.com/kailas-cloud/naviq/internal/usecase/structured"
	updateuc "github.com/kailas-cloud/naviq/internal/usecase/update"
	"github.com/kailas-cloud/naviq/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting naviq API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
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

	// Register metrics explicitly (no init())
	metrics.RegisterUpstreamMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	// Collection schemas for storage and prompts
	schemas := make(map[string]recordrepo.Schema, len(cfg.Collections))
	prompts := make(map[string]prompt.Schema, len(cfg.Collections))
	for name, cc := range cfg.Collections {
		schemas[name] = recordrepo.Schema{
			TagFields:     cc.TagFields,
			NumericFields: cc.NumericFields,
		}
		prompts[name] = prompt.Schema{
			Collection:    name,
			TagFields:     cc.TagFields,
			NumericFields: cc.NumericFields,
			NameFields:    cc.NameFields,
			Vocabulary:    cc.Vocabulary,
		}
	}

	// Repositories
	recordRepo := recordrepo.New(store, cfg.Database.KeyPrefix, schemas, cfg.Embedding.Dimensions)
	permissionRepo := permissionrepo.New(store, cfg.Database.KeyPrefix)
	auditRepo := auditrepo.New(store, cfg.Database.KeyPrefix)

	for name := range cfg.Collections {
		if err := recordRepo.EnsureIndex(ctx, name); err != nil {
			logger.Fatal("Failed to ensure index", zap.String("collection", name), zap.Error(err))
		}
	}
	logger.Info("Collection indexes ready", zap.Int("collections", len(cfg.Collections)))

	// Upstream clients with bounded retry
	retryCfg := retry.Config{MaxRetries: cfg.Pipeline.MaxRetries, Logger: logger}
	completer := retry.NewCompleter(
		openaiTransport.NewCompletionClient(&openaiTransport.CompletionConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Logger:      logger,
		}),
		retryCfg,
	)
	embedder := retry.NewEmbedder(
		openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		}),
		retryCfg,
	)
	logger.Info("Upstream clients created",
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Use case services
	gate := permissionuc.New(permissionRepo)
	structuredSvc := structureduc.New(completer, gate, recordRepo, auditRepo, prompts, logger)
	retrievalSvc := retrievaluc.New(completer, embedder, gate, recordRepo, auditRepo,
		retrievaluc.Config{TopK: cfg.Pipeline.TopK, CandidatePool: cfg.Pipeline.CandidatePool}, logger)
	hybridSvc := hybriduc.New(structuredSvc, retrievalSvc, logger)
	updateSvc := updateuc.New(completer, embedder, gate, recordRepo, auditRepo, prompts, logger)
	backfillSvc := backfilluc.New(embedder, recordRepo, cfg.Pipeline.BackfillBatchSize, logger)

	defaultCaller := domain.Caller{ID: cfg.Auth.DefaultCallerID, Role: cfg.Auth.DefaultCallerRole}
	server := chiTransport.NewServer(hybridSvc, updateSvc, backfillSvc, store, defaultCaller, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Router())

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

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithRequestLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
