// Package main is the entry point for the WealthyRabbit core service: the
// personalized financial-news pipeline and the real-time alert monitor.
//
// The application wires explicit engine values (no process-wide singletons):
// - Durable SQLite store for users, holdings and monitor data
// - Personalization pipeline (fetch, clean, detect, cluster, score, feed)
// - Monitor tasks on cron schedules (price, news, social, cleanup, digest)
// - Shared alert path (dedup hashing, daily push budget, push delivery)
// - HTTP API for the companion app
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/peterbitar/wealthyrabbit/internal/clients/llm"
	"github.com/peterbitar/wealthyrabbit/internal/clients/push"
	"github.com/peterbitar/wealthyrabbit/internal/clients/quotes"
	"github.com/peterbitar/wealthyrabbit/internal/config"
	"github.com/peterbitar/wealthyrabbit/internal/database"
	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
	alerthandlers "github.com/peterbitar/wealthyrabbit/internal/modules/alerts/handlers"
	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
	"github.com/peterbitar/wealthyrabbit/internal/modules/clustering"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
	"github.com/peterbitar/wealthyrabbit/internal/modules/feed"
	"github.com/peterbitar/wealthyrabbit/internal/modules/fetching"
	"github.com/peterbitar/wealthyrabbit/internal/modules/monitor"
	"github.com/peterbitar/wealthyrabbit/internal/modules/scoring"
	"github.com/peterbitar/wealthyrabbit/internal/modules/sources"
	"github.com/peterbitar/wealthyrabbit/internal/modules/users"
	userhandlers "github.com/peterbitar/wealthyrabbit/internal/modules/users/handlers"
	"github.com/peterbitar/wealthyrabbit/internal/pipeline"
	"github.com/peterbitar/wealthyrabbit/internal/reliability"
	"github.com/peterbitar/wealthyrabbit/internal/scheduler"
	"github.com/peterbitar/wealthyrabbit/internal/server"
	"github.com/peterbitar/wealthyrabbit/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Msg("Starting WealthyRabbit core")

	// Durable store.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "monitor.db"),
		Profile: database.ProfileStandard,
		Name:    "monitor",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate store")
	}

	// Repositories.
	userRepo := users.NewRepository(db.Conn(), log)
	holdingRepo := users.NewHoldingRepository(db.Conn(), log)
	alertRepo := alerts.NewRepository(db.Conn(), log)
	priceRepo := monitor.NewPricePointRepository(db.Conn(), log)
	newsRepo := monitor.NewNewsItemRepository(db.Conn(), log)
	socialRepo := monitor.NewSocialMentionRepository(db.Conn(), log)
	feedCache := feed.NewCacheRepository(db.Conn(), log)

	// Clients. The LLM client is nil without a key; everything downstream
	// falls back to its deterministic path.
	llmClient := llm.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel, log)
	if llmClient.Available() {
		log.Info().Str("model", cfg.LLMModel).Msg("LLM collaborator configured")
	} else {
		log.Warn().Msg("No LLM configured, running on deterministic fallbacks")
	}

	quoteClient := quotes.NewClient(cfg.QuotesAPIKey, log)
	if cfg.QuotesBaseURL != "" {
		quoteClient.SetBaseURL(cfg.QuotesBaseURL)
	}
	pushClient := push.NewClient(cfg.EnableMockNotifications, log)
	socialClient := monitor.NewSocialClient(log)

	// Shared alert path.
	streamHub := alerts.NewStreamHub(log)
	var alertWriter alerts.AlertTextWriter
	if llmClient.Available() {
		alertWriter = llmClient
	}
	dispatcher := alerts.NewDispatcher(alertRepo, pushClient, alertWriter, streamHub, cfg.MaxDailyPushes, log)

	// Pipeline engines.
	registry := sources.NewRegistry()
	if cfg.SourceListFile != "" {
		loaded, err := sources.LoadRegistry(cfg.SourceListFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load source list")
		}
		registry = loaded
		log.Info().Int("sources", len(registry.All())).Msg("Loaded source list override")
	}

	vocab := cleaning.NewTickerVocabulary()
	if cfg.TickerVocabFile != "" {
		loaded, err := cleaning.LoadTickerVocabulary(cfg.TickerVocabFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load ticker vocabulary")
		}
		vocab = loaded
		log.Info().Int("symbols", vocab.Size()).Msg("Loaded ticker vocabulary override")
	}

	fetcher := fetching.NewFetcher(registry, cfg.SourceAPIKeys, log)
	cleaner := cleaning.NewCleaner(registry, vocab, log)

	var classifier detection.Classifier
	var sameEvent clustering.SameEventChecker
	var themeWriter feed.ThemeWriter
	if llmClient.Available() {
		classifier = llmClient
		sameEvent = llmClient
		themeWriter = llmClient
	}

	detector := detection.NewDetector(classifier, log)
	clusterer := clustering.NewEngine(sameEvent, log)
	scorer := scoring.NewEngine(log)
	builder := feed.NewBuilder(themeWriter, log)

	pipe := pipeline.New(fetcher, cleaner, detector, clusterer, scorer, builder, cfg.FetchLimit, log)
	feedService := pipeline.NewFeedService(pipe, feedCache, userRepo, holdingRepo, log)

	// Scheduler and monitor tasks.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(ctx, log)

	monitorJobs := []scheduler.Job{
		monitor.NewPriceMonitor(quoteClient, userRepo, holdingRepo, priceRepo, dispatcher, log),
		monitor.NewNewsMonitor(fetcher, registry, userRepo, holdingRepo, newsRepo, dispatcher, log),
		monitor.NewSocialMonitor(socialClient, cfg.SocialForums, userRepo, holdingRepo, socialRepo, dispatcher, log),
	}
	for _, job := range monitorJobs {
		if err := sched.AddJob(cfg.MonitorSchedule, job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to schedule monitor task")
		}
	}

	cleanupJob := monitor.NewCleanupJob(priceRepo, newsRepo, socialRepo, log)
	if err := sched.AddJob("0 0 * * *", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cleanup")
	}

	digestJob := monitor.NewDigestJob(alertRepo, userRepo, dispatcher, log)
	if err := sched.AddJob("0 18 * * *", digestJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule digest")
	}

	// Store backups, when configured.
	backupService, err := reliability.NewBackupService(cfg.Backup, db, cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize backup service")
	}
	if backupService != nil {
		if err := sched.AddJob("30 2 * * *", backupService); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
		log.Info().Msg("Store backups scheduled")
	}

	sched.Start()
	log.Info().Str("schedule", cfg.MonitorSchedule).Msg("Monitor tasks scheduled")

	// HTTP server.
	srv := server.New(server.Config{
		Port:          cfg.Port,
		Log:           log,
		DB:            db,
		UserHandlers:  userhandlers.New(userRepo, holdingRepo, cfg.MaxDailyPushes, log),
		AlertHandlers: alerthandlers.New(alertRepo, streamHub, log),
		FeedService:   feedService,
		DevMode:       cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Wait for interrupt.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stopped")
}
