package commands

import (
	"context"
	"fmt"

	"github.com/kestrelworks/oppintel/internal/events"
	"github.com/kestrelworks/oppintel/internal/orchestrator"
	"github.com/kestrelworks/oppintel/internal/scanner"
	"github.com/kestrelworks/oppintel/internal/scoring"
	"github.com/kestrelworks/oppintel/internal/store"
	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/database"
	"github.com/kestrelworks/oppintel/pkg/logger"
	"github.com/kestrelworks/oppintel/pkg/redis"
)

// app bundles the wired pipeline for the CLI commands
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	bus   *events.Bus
	orch  *orchestrator.Orchestrator
	redis *redis.Client
	cache *redis.Cache
	db    *database.DB // nil when DATABASE_URL is unset
}

// buildApp wires configuration, logging, caching, persistence, the
// scoring engine, the orchestrator and the reference scanners
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis setup: %w", err)
	}
	cache := redis.NewCache(redisClient, "oppintel")

	// Persistence is optional: without DATABASE_URL the pipeline runs
	// purely in memory
	var db *database.DB
	var repo orchestrator.Repository
	if cfg.Database.URL != "" {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("database setup: %w", err)
		}

		repository := store.NewRepository(db, log)
		if err := repository.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("database schema: %w", err)
		}
		repo = repository
	}

	bus := events.NewBus(log)

	velocity := scoring.NewVelocityAnalyzer(cfg.Pipeline.VolatilityHighRisk, log)
	engine, err := scoring.NewEngine(scoring.DefaultWeights(), velocity, log)
	if err != nil {
		return nil, fmt.Errorf("scoring engine: %w", err)
	}

	orch := orchestrator.New(cfg.Pipeline, engine, bus, repo, log)

	if err := registerScanners(cfg, orch, redisClient, cache, log); err != nil {
		return nil, err
	}

	return &app{
		cfg:   cfg,
		log:   log,
		bus:   bus,
		orch:  orch,
		redis: redisClient,
		cache: cache,
		db:    db,
	}, nil
}

// registerScanners wires the reference scanners. The affiliate scanner
// needs credentials and is skipped with a warning when unconfigured.
func registerScanners(cfg *config.Config, orch *orchestrator.Orchestrator, redisClient *redis.Client, cache *redis.Cache, log *logger.Logger) error {
	opts := scanner.Options{
		Cache:         cache,
		SharedLimiter: redis.NewRateLimiter(redisClient, "oppintel"),
		CacheTTL:      cfg.Pipeline.ScannerCacheTTL,
		RatePerMinute: cfg.Pipeline.ScannerRateLimit,
		Timeout:       cfg.Pipeline.ScannerTimeout,
	}

	if cfg.Affiliate.APIKey != "" {
		affiliate, err := scanner.NewAffiliateScanner(cfg.Affiliate, opts, log)
		if err != nil {
			return fmt.Errorf("affiliate scanner: %w", err)
		}
		if err := orch.Register(affiliate); err != nil {
			return err
		}
	} else {
		log.Warn("AFFILIATE_API_KEY not set, affiliate scanner disabled")
	}

	if err := orch.Register(scanner.NewSocialScanner(cfg.Social, opts, log)); err != nil {
		return err
	}

	if err := orch.Register(scanner.NewSeasonalScanner(opts, log)); err != nil {
		return err
	}

	return nil
}

// close releases the app's external connections
func (a *app) close() {
	a.bus.Close()
	if a.db != nil {
		a.db.Close()
	}
	_ = a.redis.Close()
}
