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

	"github.com/kailas-cloud/bioportal/internal/config"
	dbBolt "github.com/kailas-cloud/bioportal/internal/db/bolt"
	dbMongo "github.com/kailas-cloud/bioportal/internal/db/mongo"
	dbRedis "github.com/kailas-cloud/bioportal/internal/db/redis"
	"github.com/kailas-cloud/bioportal/internal/domain/aggregate"
	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
	"github.com/kailas-cloud/bioportal/internal/domain/condition"
	"github.com/kailas-cloud/bioportal/internal/domain/extent"
	"github.com/kailas-cloud/bioportal/internal/domain/fieldtable"
	logpkg "github.com/kailas-cloud/bioportal/internal/logger"
	"github.com/kailas-cloud/bioportal/internal/metrics"
	ancillaryrepo "github.com/kailas-cloud/bioportal/internal/repository/ancillary"
	"github.com/kailas-cloud/bioportal/internal/repository/idcache"
	"github.com/kailas-cloud/bioportal/internal/repository/metacache"
	specimenrepo "github.com/kailas-cloud/bioportal/internal/repository/specimen"
	statsrepo "github.com/kailas-cloud/bioportal/internal/repository/stats"
	summaryrepo "github.com/kailas-cloud/bioportal/internal/repository/summary"
	taxonomyrepo "github.com/kailas-cloud/bioportal/internal/repository/taxonomy"
	termsrepo "github.com/kailas-cloud/bioportal/internal/repository/terms"
	chiTransport "github.com/kailas-cloud/bioportal/internal/transport/chi"
	"github.com/kailas-cloud/bioportal/internal/transport/imagesvc"
	ancillaryuc "github.com/kailas-cloud/bioportal/internal/usecase/ancillary"
	documentsuc "github.com/kailas-cloud/bioportal/internal/usecase/documents"
	healthuc "github.com/kailas-cloud/bioportal/internal/usecase/health"
	imagesuc "github.com/kailas-cloud/bioportal/internal/usecase/images"
	mapsuc "github.com/kailas-cloud/bioportal/internal/usecase/maps"
	queryuc "github.com/kailas-cloud/bioportal/internal/usecase/query"
	statsuc "github.com/kailas-cloud/bioportal/internal/usecase/stats"
	summaryuc "github.com/kailas-cloud/bioportal/internal/usecase/summary"
	taxonomyuc "github.com/kailas-cloud/bioportal/internal/usecase/taxonomy"
	termsuc "github.com/kailas-cloud/bioportal/internal/usecase/terms"
	"github.com/kailas-cloud/bioportal/internal/version"
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

	logger.Info("Starting bioportal API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("mongo_database", cfg.Mongo.Database),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
		zap.String("idcache_path", cfg.IDCache.Path),
	)

	// Register portal metrics explicitly (no init())
	metrics.RegisterPortalMetrics()

	ctx := context.Background()

	// Document store
	store, err := dbMongo.NewStore(ctx, dbMongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  time.Duration(cfg.Mongo.TimeoutSec) * time.Second,
	},
		dbMongo.WithQueryLogger(logpkg.QueryLogger(logger)),
		dbMongo.WithObserver(metrics.ObserveStoreQuery),
	)
	if err != nil {
		logger.Fatal("Failed to create document store", zap.Error(err))
	}
	defer func() { _ = store.Close(context.Background()) }()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Mongo.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Document store not ready", zap.Error(err))
	}
	logger.Info("Connected to document store")

	// Meta cache. An unreachable cache degrades to misses, so readiness is not fatal.
	kv, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:            cfg.Cache.Addrs,
		Password:         cfg.Cache.Password,
		DB:               cfg.Cache.DB,
		ConnWriteTimeout: time.Duration(cfg.Cache.WriteTimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer kv.Close()

	if err := kv.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Warn("Cache not ready, continuing without it", zap.Error(err))
	}

	// Durable ID cache
	ids, err := dbBolt.Open(dbBolt.Config{
		Path:        cfg.IDCache.Path,
		OpenTimeout: time.Duration(cfg.IDCache.OpenTimeoutSec) * time.Second,
		Buckets:     idcache.Buckets,
	})
	if err != nil {
		logger.Fatal("Failed to open ID cache", zap.Error(err))
	}
	defer func() { _ = ids.Close() }()

	// Caches
	layout, _ := cachekey.ParseLayout(cfg.Cache.KeyLayout) // checked by Validate
	metaCache := metacache.New(kv, cfg.Cache.KeyPrefix, layout,
		time.Duration(cfg.Cache.DefaultTTLSec)*time.Second, metrics.CacheTotal, logger)
	maxAge := time.Duration(cfg.IDCache.MaxAgeHours) * time.Hour
	idCache := idcache.New(ids, maxAge, metrics.CacheTotal, logger)

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	if maxAge > 0 {
		go purgeExpired(purgeCtx, idCache, maxAge, logger)
	}

	// Repositories (domain-native, no adapters)
	cols := cfg.Mongo.Collections
	specimens := specimenrepo.New(store, cols.Primary)
	summaries := summaryrepo.New(store, summaryrepo.Collections{
		aggregate.GroupSummary: cols.Summary,
		aggregate.GroupSeqsite: cols.SeqsiteSummary,
		aggregate.GroupBin:     cols.BinSummary,
		aggregate.GroupDataset: cols.DatasetSummary,
	})
	taxa := taxonomyrepo.New(store, cols.TaxonomySummary)
	termsRepo := termsrepo.New(store, cols.Terms)
	statsRepo := statsrepo.New(store, cols.Primary)
	ancillaryRepo := ancillaryrepo.New(store)

	// Use case services
	builder := condition.NewBuilder(fieldtable.V1)
	policy := extent.Policy{Limited: cfg.Query.Limited, Large: cfg.Query.Large}

	querySvc := queryuc.New(builder, policy, specimens, idCache)
	summarySvc := summaryuc.New(builder, summaries, specimens, idCache, metaCache, cfg.Query.SummaryBatch)
	taxonomySvc := taxonomyuc.New(builder, specimens, summaries, summarySvc, idCache, taxa, metaCache, taxonomyuc.Config{
		CacheAfter:           time.Duration(cfg.Taxonomy.CacheAfterMs) * time.Millisecond,
		CacheTTL:             time.Duration(cfg.Taxonomy.CacheTTLSec) * time.Second,
		DominantShare:        cfg.Taxonomy.DominantShare,
		DefaultNodeThreshold: cfg.Taxonomy.DefaultNodeThreshold,
	})
	documentsSvc := documentsuc.New(querySvc, specimens, metaCache, documentsuc.Config{
		DefaultFields: cfg.Documents.DefaultFields,
		DownloadBatch: cfg.Documents.DownloadBatch,
		DownloadMax:   cfg.Documents.DownloadMax,
	})
	termsSvc := termsuc.New(builder, termsRepo)
	statsSvc := statsuc.New(statsRepo, metaCache, statsrepo.Names)
	ancillarySvc := ancillaryuc.New(ancillaryRepo, metaCache)
	mapsSvc := mapsuc.New(summarySvc, ancillarySvc, metaCache)

	imageClient := imagesvc.NewClient(&imagesvc.Config{
		BaseURL:    cfg.Images.BaseURL,
		Timeout:    time.Duration(cfg.Images.TimeoutSec) * time.Second,
		RatePerSec: cfg.Images.RatePerSec,
		Logger:     logger,
	})
	imagesSvc := imagesuc.New(builder, specimens, imageClient, imagesuc.Config{
		PIDLimit:    cfg.Images.PIDLimit,
		MaxImages:   cfg.Images.MaxImages,
		SampleLimit: cfg.Images.SampleLimit,
	})

	healthSvc := healthuc.New(store, kv, ids)

	// Create chi server
	server := chiTransport.NewServer(chiTransport.Services{
		Queries:   querySvc,
		Documents: documentsSvc,
		Summaries: summarySvc,
		Taxonomy:  taxonomySvc,
		Terms:     termsSvc,
		Stats:     statsSvc,
		Images:    imagesSvc,
		Ancillary: ancillarySvc,
		Maps:      mapsSvc,
		Health:    healthSvc,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	chiTransport.Handler(server, chiTransport.Options{
		BaseRouter:       r,
		ErrorHandlerFunc: server.ParamErrorHandler,
		RequestTimeout:   time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
	})

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

// purgeExpired drops ID lists older than maxAge, once at startup and then hourly.
func purgeExpired(ctx context.Context, c *idcache.Cache, maxAge time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if _, err := c.Purge(ctx, time.Now().Add(-maxAge)); err != nil {
			logger.Warn("ID cache purge failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
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
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
