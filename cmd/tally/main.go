package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tally/internal/auth"
	"tally/internal/backend"
	"tally/internal/cli"
	apphttp "tally/internal/http"
	tlog "tally/internal/log"
	"tally/internal/present"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(tlog.ComponentApp, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(tlog.ComponentApp, cfg.LogLevel, cfg.LogFormat)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.WithComponent(tlog.ComponentBackend).Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	authn := auth.New(cfg.AuthJWTSecret, cfg.AuthCookie)
	if !authn.Enabled() {
		logger.Warn("AUTH_JWT_SECRET not set, running as single local owner")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:     result.Backend,
		Publisher: factory.NewPublisher(cfg),
		Auth:      authn,
		Formatter: present.NewFormatter(cfg.CurrencySymbol),
		Location:  cfg.Location(),
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Logger:    logger,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	logger.Info("Starting tally server",
		"port", cfg.Port,
		"backend", backendCfg.Type,
		"auth", authn.Enabled(),
		"timezone", cfg.Location().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
