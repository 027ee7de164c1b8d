package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/backend/config"
	httpDelivery "github.com/nutriscan/backend/internal/delivery/http"
	"github.com/nutriscan/backend/internal/domain"
	"github.com/nutriscan/backend/internal/infrastructure/blobstore"
	"github.com/nutriscan/backend/internal/infrastructure/cache"
	"github.com/nutriscan/backend/internal/infrastructure/docstore"
	"github.com/nutriscan/backend/internal/infrastructure/gemini"
	"github.com/nutriscan/backend/internal/infrastructure/identity"
	"github.com/nutriscan/backend/internal/infrastructure/imagefetch"
	"github.com/nutriscan/backend/internal/infrastructure/logging"
	"github.com/nutriscan/backend/internal/infrastructure/storage"
	"github.com/nutriscan/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting NutriScan backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Type),
		zap.String("blob", cfg.Blob.Type),
		zap.String("cache", cfg.Cache.Type))

	// Initialize infrastructure dependencies
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("failed to close resource", zap.Error(err))
			}
		}
	}()

	analysisCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	closers = append(closers, analysisCache)

	docs, err := newDocumentStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	if c, ok := docs.(io.Closer); ok {
		closers = append(closers, c)
	}

	blobs, opener, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	geminiClient, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		MaxRetries:        cfg.Gemini.MaxRetries,
		InitialBackoff:    cfg.Gemini.InitialBackoff,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
		Burst:             cfg.Gemini.Burst,
	}, logger)
	if err != nil {
		return err
	}

	// Initialize usecase layer
	analysis := usecase.NewAnalysisService(geminiClient, analysisCache, usecase.AnalysisServiceConfig{
		CacheTTL: cfg.Cache.TTL,
	}, logger)
	store := storage.NewFoodStore(docs, blobs, logger)
	directory := identity.NewDirectory(docs, identity.DirectoryConfig{
		TokenSecret: cfg.Auth.TokenSecret,
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
	}, logger)
	if cfg.Auth.TokenSecret == "" {
		logger.Warn("auth.token_secret is not set, interactive sign-in is disabled")
	}
	fetcher := imagefetch.NewFetcher(cfg.Server.ImageFetchTimeout, cfg.Server.MaxUploadBytes)

	controllerCfg := usecase.ControllerConfig{
		RetranslateOnLanguageChange: cfg.Session.RetranslateOnLanguageChange,
		TranslateConcurrency:        cfg.Session.TranslateConcurrency,
		DefaultLanguage:             domain.Language(cfg.Session.DefaultLanguage),
	}
	sessions := usecase.NewSessionManager(func(sessionID string) *usecase.Controller {
		return usecase.NewController(usecase.ControllerDeps{
			Analysis: analysis,
			Identity: identity.NewClient(directory),
			Store:    store,
			Images:   fetcher,
			Logger:   logger.With(zap.String("session", sessionID)),
		}, controllerCfg)
	}, cfg.Session.IdleTimeout, logger)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.Session.SweepInterval)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(sessions, opener, cfg.Server.MaxUploadBytes, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	stopSweep()
	sessions.Shutdown()
	logger.Info("server stopped")
	return nil
}

type closableCache interface {
	domain.CacheRepository
	io.Closer
}

func newCache(ctx context.Context, cfg config.CacheConfig) (closableCache, error) {
	if cfg.Type == "redis" {
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(cfg.CleanupInterval), nil
}

func newDocumentStore(ctx context.Context, cfg config.StoreConfig) (domain.DocumentStore, error) {
	if cfg.Type == "firestore" {
		s, err := docstore.NewFirestoreStore(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return s, nil
	}
	return docstore.NewMemoryStore(), nil
}

// newBlobStore returns the blob store and, for the in-memory store, the
// opener that serves its objects under /blobs/
func newBlobStore(ctx context.Context, cfg *config.Config) (domain.BlobStore, httpDelivery.BlobOpener, error) {
	if cfg.Blob.Type == "s3" {
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:        cfg.Blob.Bucket,
			Region:        cfg.Blob.Region,
			Endpoint:      cfg.Blob.Endpoint,
			AccessKey:     cfg.Blob.AccessKey,
			SecretKey:     cfg.Blob.SecretKey,
			UsePathStyle:  cfg.Blob.UsePathStyle,
			PublicBaseURL: cfg.Blob.PublicBaseURL,
			PresignExpiry: cfg.Blob.PresignExpiry,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	mem := blobstore.NewMemoryStore(cfg.Server.PublicURL)
	return mem, mem, nil
}
