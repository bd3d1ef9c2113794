// Package main provides the survival-calculation service binary: it loads
// the dex catalog, wires the damage calculator and job manager, and serves
// the newline-delimited JSON job protocol over TCP.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cassieroh/bulkcalc/internal/config"
	"github.com/cassieroh/bulkcalc/internal/game/calc"
	"github.com/cassieroh/bulkcalc/internal/game/dex"
	"github.com/cassieroh/bulkcalc/internal/observability"
	"github.com/cassieroh/bulkcalc/internal/scripting"
	"github.com/cassieroh/bulkcalc/internal/server"
	"github.com/cassieroh/bulkcalc/internal/storage/postgres"
	"github.com/cassieroh/bulkcalc/internal/worker"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting survival-calculation service",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("dex_source", cfg.Dex.Source),
	)

	lifecycle := server.NewLifecycle(logger)

	// Resolve the dex catalog. Both sources end up as an in-memory Registry;
	// lookups during a grid search must not leave the process.
	var registry *dex.Registry
	switch cfg.Dex.Source {
	case "postgres":
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		registry, err = postgres.NewDexRepository(pool.DB()).LoadRegistry(ctx)
		if err != nil {
			logger.Fatal("loading dex catalog from database", zap.Error(err))
		}
		logger.Info("dex catalog loaded from database",
			zap.String("host", cfg.Database.Host),
			zap.Int("species", registry.SpeciesCount()),
			zap.Int("moves", registry.MoveCount()),
			zap.Duration("elapsed", time.Since(dbStart)),
		)

		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					time.Sleep(30 * time.Second)
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				pool.Close()
			},
		})
	default:
		loadStart := time.Now()
		registry, err = dex.LoadDir(cfg.Dex.Dir)
		if err != nil {
			logger.Fatal("loading dex content", zap.String("dir", cfg.Dex.Dir), zap.Error(err))
		}
		logger.Info("dex catalog loaded",
			zap.String("dir", cfg.Dex.Dir),
			zap.Int("species", registry.SpeciesCount()),
			zap.Int("moves", registry.MoveCount()),
			zap.Duration("elapsed", time.Since(loadStart)),
		)
	}

	var calculator calc.Calculator = calc.NewBuiltin(registry)
	if cfg.Simulation.ScriptDir != "" {
		scriptStart := time.Now()
		engine, err := scripting.NewEngine(cfg.Simulation.ScriptDir, 0, logger)
		if err != nil {
			logger.Fatal("loading override scripts",
				zap.String("dir", cfg.Simulation.ScriptDir), zap.Error(err))
		}
		defer engine.Close()
		calculator = scripting.NewOverride(calculator, engine)
		logger.Info("scripting engine initialized",
			zap.String("dir", cfg.Simulation.ScriptDir),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
	}

	manager := worker.NewManager(worker.Deps{
		Dex:    registry,
		Calc:   calculator,
		Logger: logger,
		Config: cfg.Simulation,
	})

	lifecycle.Add("acceptor", server.NewAcceptor(cfg.Server, manager, logger))

	logger.Info("service initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
