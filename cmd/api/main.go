package main

import (
	"context"
	"log"
	"net/http"

	"assettrack-api/internal"
	"assettrack-api/internal/config"
	"assettrack-api/internal/history"
	"assettrack-api/internal/logger"
	"assettrack-api/internal/repository"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "assettrack-api")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	engine := history.NewEngine()
	repo, err := repository.Open(context.Background(), cfg, engine)
	if err != nil {
		zl.Fatal("open repository", zap.Error(err))
	}

	srv, err := internal.NewServer(cfg, repo, engine, zl)
	if err != nil {
		zl.Fatal("build server", zap.Error(err))
	}

	zl.Info("starting assettrack api",
		zap.String("addr", cfg.ListenAddr),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.Bool("metrics", cfg.EnableMetrics),
	)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Router); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
