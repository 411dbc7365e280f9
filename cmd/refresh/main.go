package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

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
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "jobmapper-refresh",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	sourceID := flag.String("source", "", "Only pull this source (hnhiring, remoteok); empty pulls all enabled sources")
	limit := flag.Int("limit", 0, "Override max listings per source for this run")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	if *limit > 0 {
		cfg.Refresh.MaxListings = *limit
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

	pinStore := store.NewPinStore(snapshotRepo, cfg.Refresh.SnapshotHistory, appLogger)
	if err := pinStore.Bootstrap(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to bootstrap pin store")
	}

	// Optional vector index
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

	// Job sources, optionally narrowed to one
	var connectors []source.Connector
	if cfg.Sources.HNHiring.Enabled && (*sourceID == "" || *sourceID == "hnhiring") {
		connectors = append(connectors, hnhiring.NewAdapter(hnhiring.Config{
			SearchBaseURL: cfg.Sources.HNHiring.SearchBaseURL,
			ItemBaseURL:   cfg.Sources.HNHiring.ItemBaseURL,
			ThreadID:      cfg.Sources.HNHiring.ThreadID,
			RatePerSec:    cfg.Sources.HNHiring.RatePerSec,
		}))
	}
	if cfg.Sources.RemoteOK.Enabled && (*sourceID == "" || *sourceID == "remoteok") {
		connectors = append(connectors, remoteok.NewAdapter(remoteok.Config{
			BaseURL:    cfg.Sources.RemoteOK.BaseURL,
			RatePerSec: cfg.Sources.RemoteOK.RatePerSec,
		}))
	}
	if len(connectors) == 0 {
		appLogger.WithField("source", *sourceID).Fatal("No matching job sources enabled")
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
			PullTimeout:    cfg.Refresh.PullTimeout,
			ExtractWorkers: cfg.Refresh.ExtractWorkers,
			ResolveWorkers: cfg.Refresh.ResolveWorkers,
			BatchSize:      cfg.Refresh.BatchSize,
			MaxListings:    cfg.Refresh.MaxListings,
		},
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Run one cycle
	run, err := orchestrator.RunOnce(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Refresh cycle failed")
	}
	appLogger.WithFields(logger.Fields{
		"status":     run.Status,
		"fetched":    run.FetchedListings,
		"extracted":  run.ExtractedRecords,
		"failed":     run.FailedExtractions,
		"unresolved": run.UnresolvedRecords,
		"pins":       run.PinCount,
		"generation": run.SnapshotGeneration,
	}).Info("Refresh completed")
}
