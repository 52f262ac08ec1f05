package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"

	"github.com/permitpath/engine/internal/baseline"
	"github.com/permitpath/engine/internal/core/config"
	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/diagnose"
	"github.com/permitpath/engine/internal/infra/catalog"
	redisclient "github.com/permitpath/engine/internal/infra/redis"
	"github.com/permitpath/engine/internal/infra/storage/postgres"
	"github.com/permitpath/engine/internal/ops"
	"github.com/permitpath/engine/internal/predict"
	"github.com/permitpath/engine/internal/resilience/breaker"
	"github.com/permitpath/engine/internal/resilience/pool"
)

// Engine wires the routing-intelligence core: storage, resilience layer,
// baseline store and refresher, predictor, diagnoser, and the ops surface.
type Engine struct {
	cfg config.AppConfig
	log *slog.Logger

	db          *postgres.DB
	redisClient *redisclient.Client
	catalogGRPC *catalog.GRPCConn

	pool      *pool.Pool
	breakers  *breaker.Registry
	catalog   *catalog.Client
	baselines *baseline.Store
	refresher *baseline.Refresher
	predictor *predict.Predictor
	diagnoser *diagnose.Diagnoser
	opsServer *ops.Server
}

// NewEngine creates an Engine with all dependencies initialized and
// migrations applied.
func NewEngine(ctx context.Context, cfg config.AppConfig) (*Engine, error) {
	log := slog.Default()

	// 1. Storage
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	if err := goose.Up(db.DB.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	// 2. Resilience layer
	connPool := pool.New(db.DB, cfg.Pool, log)
	breakers := breaker.NewRegistry(cfg.Breaker)

	eventRepo := postgres.NewEventRepo(db, connPool)
	baselineRepo := postgres.NewBaselineRepo(db, connPool)

	// 3. Caches (optional)
	var redisClient *redisclient.Client
	var snapCache catalog.SnapshotCache
	var blCache baseline.Cache
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		snapCache = redisClient
		blCache = redisClient
	}

	// 4. Permit catalog collaborator
	catalogClient := catalog.NewClient(cfg.Catalog, breakers, snapCache, log)
	var catalogGRPC *catalog.GRPCConn
	if cfg.Catalog.GRPCAddr != "" {
		catalogGRPC, err = catalog.DialGRPC(ctx, cfg.Catalog.GRPCAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to dial catalog grpc: %w", err)
		}
	}

	// 5. Core components
	baselineStore := baseline.NewStore(baselineRepo, blCache, cfg.Baseline.MinSamples, log)
	refresher := baseline.NewRefresher(eventRepo, baselineRepo, blCache, cfg.Baseline.Refresher, log)
	predictor := predict.NewPredictor(catalogClient, eventRepo, baselineStore, cfg.Predictor, log)
	diagnoser := diagnose.NewDiagnoser(catalogClient, eventRepo, baselineStore, catalogClient, cfg.Diagnoser, log)

	// 6. Ops surface
	checks := map[string]ops.HealthCheck{
		"database": db.Health,
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}
	if catalogGRPC != nil {
		checks["catalog_grpc"] = catalogGRPC.CheckHealth
	}
	opsServer := ops.NewServer(cfg.Server.Port, connPool, breakers, checks)

	return &Engine{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		catalogGRPC: catalogGRPC,
		pool:        connPool,
		breakers:    breakers,
		catalog:     catalogClient,
		baselines:   baselineStore,
		refresher:   refresher,
		predictor:   predictor,
		diagnoser:   diagnoser,
		opsServer:   opsServer,
	}, nil
}

// Start launches the baseline refresh worker, the metrics collector, and
// the ops server.
func (e *Engine) Start(ctx context.Context) error {
	go e.refresher.Start(ctx)
	ops.StartCollector(ctx, e.pool, e.breakers)

	go func() {
		e.log.Info("ops server listening", "port", e.cfg.Server.Port)
		if err := e.opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("ops server stopped", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the ops server and closes connections.
func (e *Engine) Stop(ctx context.Context) error {
	if err := e.opsServer.Stop(ctx); err != nil {
		e.log.Warn("ops server shutdown failed", "error", err)
	}
	if e.catalogGRPC != nil {
		if err := e.catalogGRPC.Close(); err != nil {
			e.log.Warn("catalog grpc close failed", "error", err)
		}
	}
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Warn("redis close failed", "error", err)
		}
	}
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

// Predict runs the transition predictor for a permit.
func (e *Engine) Predict(ctx context.Context, permitID string) domain.Prediction {
	return e.predictor.Predict(ctx, permitID)
}

// Diagnose runs the stuck-permit diagnoser for a permit.
func (e *Engine) Diagnose(ctx context.Context, permitID string) domain.Playbook {
	return e.diagnoser.Diagnose(ctx, permitID)
}

// RefreshBaselines triggers one synchronous baseline recompute (admin
// surface).
func (e *Engine) RefreshBaselines(ctx context.Context) error {
	return e.refresher.RefreshOnce(ctx)
}
