package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendlog/internal/auth"
	"spendlog/internal/cache"
	"spendlog/internal/cli"
	apphttp "spendlog/internal/http"
	applog "spendlog/internal/log"
	"spendlog/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("Failed to initialize token issuer", applog.FieldError, err)
		os.Exit(1)
	}

	categories := services.NewCategoryService(res.Store, logger)
	dashboard := services.NewDashboardService(res.Store, res.Store, logger)
	svc := apphttp.Services{
		Accounts:   services.NewAccountService(res.Store, issuer, logger),
		Expenses:   services.NewExpenseService(res.Store, categories, dashboard, res.Publisher, logger),
		Categories: categories,
		Dashboard:  dashboard,
		Export:     services.NewExportService(res.Store, dashboard, logger),
		Issuer:     issuer,
		Store:      res.Store,
	}

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(categories.Cache())
	cacheManager.StartCleanup(5 * time.Minute)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               cfg.Addr(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, svc, logger)
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting spendlog server",
		"addr", cfg.Addr(),
		applog.FieldBackend, cfg.DataBackend,
		"amqp_enabled", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "addr", cfg.Addr())
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
