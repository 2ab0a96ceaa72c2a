package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/nerakcos/storefront-go/internal/devserver"
	"github.com/nerakcos/storefront-go/pkg/config"
	"github.com/nerakcos/storefront-go/pkg/env"
	"github.com/nerakcos/storefront-go/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "devserver"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "devserver",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	server, err := devserver.New(logg, []byte(env.Get("DEVSERVER_JWT_SECRET", "dev-secret")))
	if err != nil {
		logg.Error(context.Background(), "failed to build dev server", err)
		os.Exit(1)
	}

	seed(server)

	addr := ":" + env.Get("PORT", "5000")
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting dev cart api")

	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "dev cart api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func seed(server *devserver.Server) {
	server.SeedProduct(devserver.Product{ID: "prod-1", Name: "Canvas Tote", Price: decimal.NewFromInt(25), Stock: 50})
	server.SeedProduct(devserver.Product{ID: "prod-2", Name: "Enamel Mug", Price: decimal.NewFromInt(18), Stock: 30})
	server.SeedProduct(devserver.Product{ID: "prod-3", Name: "Linen Scarf", Price: decimal.NewFromInt(42), Stock: 12})
}
