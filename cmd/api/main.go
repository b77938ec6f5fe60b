package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"contentfactory/internal/adapter/repo"
	"contentfactory/internal/http/handlers"
	httpapi "contentfactory/internal/http/httpapi"
	"contentfactory/internal/infra"
	"contentfactory/internal/infra/geoip"
	"contentfactory/internal/middleware"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/realtime"
	"contentfactory/internal/storage"
	"contentfactory/internal/workflow"
)

var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger).WithSlowThreshold(cfg.SQLSlowThreshold)
	probe := infra.NewStoreProbe(repo.NewStorePinger(runner), logger)
	if !probe.Available(ctx) {
		logger.Warn().Msg("starting with the database unreachable, ledger endpoints report degraded")
	}
	ledger := repo.NewLedger(runner)

	engine := workflow.NewClient(workflow.Config{
		BaseURL:        cfg.WorkflowBaseURL,
		StartPath:      cfg.WorkflowStartPath,
		PublishPath:    cfg.WorkflowPublishPath,
		Timeout:        cfg.WorkflowTimeout,
		PublishTimeout: cfg.WorkflowPublishTimeout,
	}, logger)

	var media pipeline.MediaLocator
	if locator, err := storage.NewLocator(cfg.StorageBaseURL); err != nil {
		logger.Warn().Err(err).Msg("media urls disabled")
	} else {
		media = locator
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
		defer resolver.Close()
	}

	hub := realtime.NewHub(logger)
	app := handlers.NewApp(
		pipeline.NewSessions(ledger, engine, hub, logger),
		pipeline.NewIngress(ledger, hub, media, logger),
		pipeline.NewResumeGate(ledger.Sessions, engine, hub, logger),
		probe,
		engine,
		logger,
		version,
	)

	router, err := httpapi.NewRouter(app, hub, httpapi.Config{
		JWTSecret:            cfg.JWTSecret,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		InternalAllowedCIDRs: cfg.InternalAllowedCIDRs,
		DefaultLocale:        cfg.DefaultLocale,
		RateLimitPerMin:      cfg.RateLimitPerMin,
		WSSendBuffer:         cfg.WSSendBuffer,
		CountryLookup:        countryLookup,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("version", version).Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
