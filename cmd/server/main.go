package main

import (
	"context"
	"log"
	"net/http"

	"github.com/Suhaibinator/SModule/internal/api"
	"github.com/Suhaibinator/SModule/internal/config"
	"github.com/Suhaibinator/SModule/internal/db"
	"github.com/Suhaibinator/SModule/internal/lifecycle"
	"github.com/Suhaibinator/SModule/internal/logging"
	"github.com/Suhaibinator/SModule/internal/migrate"
	"github.com/Suhaibinator/SModule/internal/module"
	"github.com/Suhaibinator/SModule/internal/registry"
	"github.com/Suhaibinator/SModule/internal/storage"
	"github.com/Suhaibinator/SModule/modules/catalog"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()

	// Initialize Database (Postgres or SQLite)
	gormDB, err := db.Init(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Initialize Storage (Minio or Local) for registry backups
	store, err := storage.InitStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	// Modules compiled into this binary
	table := module.NewTable()
	table.MustRegister(catalog.New(logger))

	sources := []registry.Source{registry.TableSource{Table: table}}
	if cfg.ModulesPath != "" {
		sources = append(sources, registry.NewManifestSource(cfg.ModulesPath, logger))
	}
	reg := registry.New(logger, sources, registry.WithBackupStore(store))

	// Refresh the registry once the engine tables are migrated
	if _, err := reg.Discover(ctx); err != nil {
		logger.Warn("Initial module discovery failed", zap.Error(err))
	}

	manager := lifecycle.New(gormDB, reg, table, migrate.New(table, logger), logger)

	// Initialize Router
	router := mux.NewRouter()
	api.RegisterRoutes(router, api.NewHandler(manager, reg, logger), cfg.AuthToken)
	api.MountModules(ctx, router, table.Definitions(), reg, manager, gormDB, logger)

	// Start Server
	listenAddr := ":" + cfg.ServerPort
	logger.Info("Starting server", zap.String("addr", listenAddr))
	if err := http.ListenAndServe(listenAddr, router); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
