package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indrayudh19/Job-Mapper/internal/api"
	"github.com/indrayudh19/Job-Mapper/internal/api/middleware"
	"github.com/indrayudh19/Job-Mapper/internal/archive"
	"github.com/indrayudh19/Job-Mapper/internal/config"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"github.com/indrayudh19/Job-Mapper/internal/repository"
	"github.com/indrayudh19/Job-Mapper/internal/service"
	"github.com/indrayudh19/Job-Mapper/internal/source"
	"github.com/indrayudh19/Job-Mapper/internal/source/hnhiring"
	"github.com/indrayudh19/Job-Mapper/internal/source/remoteok"
	"github.com/indrayudh19/Job-Mapper/internal/store"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	recordRepo := repository.NewRecordRepository(db)
	geoCacheRepo := repository.NewGeoCacheRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	runRepo := repository.NewRunRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pin store serves the last committed snapshot immediately after restart
	pinStore := store.NewPinStore(snapshotRepo, cfg.Refresh.SnapshotHistory, appLogger)
	if err := pinStore.Bootstrap(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to bootstrap pin store")
	}

	// Optional vector index for semantic search
	var embedder service.EmbeddingProvider
	var pinIndex service.PinIndex
	var indexer *service.PinIndexer
	if cfg.Qdrant.Enabled {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
		}
		defer qdrantRepo.Close()

		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
		}

		embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
			Provider:   cfg.Embedding.Provider,
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			Dimensions: cfg.Embedding.Dimensions,
		})
		embedder = embeddingService
		pinIndex = qdrantRepo
		indexer = service.NewPinIndexer(embeddingService, qdrantRepo, appLogger)
	}

	// Optional raw listing archive
	var rawArchiver service.RawArchiver
	if cfg.Archive.Enabled {
		objectArchive, err := archive.NewArchive(&archive.S3Config{
			Type:      archive.ArchiveType(cfg.Archive.Type),
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize archive")
		}
		if err := objectArchive.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure archive bucket")
		}
		rawArchiver = archive.NewListingArchiver(objectArchive)
	}

	// Extraction agent
	llmClient := service.NewLLMClient(&service.LLMConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	agent := service.NewExtractionAgent(llmClient, appLogger, &service.ExtractionConfig{
		MaxAttempts: cfg.LLM.MaxAttempts,
	})

	// Location resolver
	geocoder := service.NewNominatimGeocoder(&service.NominatimConfig{
		BaseURL:     cfg.Geocoder.BaseURL,
		UserAgent:   cfg.Geocoder.UserAgent,
		Email:       cfg.Geocoder.Email,
		CountryBias: cfg.Geocoder.CountryBias,
		RatePerSec:  cfg.Geocoder.RatePerSec,
		MaxAttempts: cfg.Geocoder.MaxAttempts,
		Timeout:     cfg.Geocoder.Timeout,
	})
	resolver := service.NewLocationResolver(geoCacheRepo, geocoder, appLogger)
	if err := resolver.SeedCache(ctx); err != nil {
		appLogger.WithError(err).Warn("Failed to seed geo cache")
	}

	// Job sources
	var connectors []source.Connector
	if cfg.Sources.HNHiring.Enabled {
		connectors = append(connectors, hnhiring.NewAdapter(hnhiring.Config{
			SearchBaseURL: cfg.Sources.HNHiring.SearchBaseURL,
			ItemBaseURL:   cfg.Sources.HNHiring.ItemBaseURL,
			ThreadID:      cfg.Sources.HNHiring.ThreadID,
			RatePerSec:    cfg.Sources.HNHiring.RatePerSec,
		}))
	}
	if cfg.Sources.RemoteOK.Enabled {
		connectors = append(connectors, remoteok.NewAdapter(remoteok.Config{
			BaseURL:    cfg.Sources.RemoteOK.BaseURL,
			RatePerSec: cfg.Sources.RemoteOK.RatePerSec,
		}))
	}
	if len(connectors) == 0 {
		appLogger.Fatal("No job sources enabled")
	}

	orchestrator := service.NewOrchestrator(
		connectors,
		agent,
		resolver,
		pinStore,
		recordRepo,
		runRepo,
		rawArchiver,
		indexer,
		appLogger,
		service.OrchestratorConfig{
			Interval:       cfg.Refresh.Interval,
			PullTimeout:    cfg.Refresh.PullTimeout,
			ExtractWorkers: cfg.Refresh.ExtractWorkers,
			ResolveWorkers: cfg.Refresh.ResolveWorkers,
			BatchSize:      cfg.Refresh.BatchSize,
			MaxListings:    cfg.Refresh.MaxListings,
		},
	)

	queryService := service.NewPinQueryService(pinStore, embedder, pinIndex, cfg.Search.ScoreThreshold)

	// Setup router
	router := api.SetupRouter(&api.RouterDeps{
		PinStore:     pinStore,
		QueryService: queryService,
		Orchestrator: orchestrator,
		RunRepo:      runRepo,
		Logger:       appLogger,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, cfg.Server.Mode)

	// Run the refresh scheduler and kick off the first cycle
	go orchestrator.Start(ctx)
	orchestrator.Trigger()

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
