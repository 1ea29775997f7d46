package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/octobees/enrichment-pipeline/internal/auth"
	"github.com/octobees/enrichment-pipeline/internal/config"
	"github.com/octobees/enrichment-pipeline/internal/database"
	"github.com/octobees/enrichment-pipeline/internal/enrichclient"
	"github.com/octobees/enrichment-pipeline/internal/handler"
	"github.com/octobees/enrichment-pipeline/internal/logging"
	middlewarepkg "github.com/octobees/enrichment-pipeline/internal/middleware"
	"github.com/octobees/enrichment-pipeline/internal/repository"
	"github.com/octobees/enrichment-pipeline/internal/router"
	"github.com/octobees/enrichment-pipeline/internal/service"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	client, err := enrichclient.New(context.Background(), cfg.Enrich)
	if err != nil {
		logger.Fatal("failed to build enrichment client", zap.Error(err))
	}
	dispatcher := enrichment.NewDispatcher(client, enrichclient.DispatcherOptions(cfg.Enrich), logger)

	var normalizerOpts []service.NormalizerOption
	if cfg.MXCheck {
		normalizerOpts = append(normalizerOpts, service.WithSystemMXCheck())
	}
	normalizer := service.NewContactNormalizer(cfg.PhoneRegion, normalizerOpts...)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)

	contactsRepo := repository.NewPGXContactsRepository(pool)
	recipesRepo := repository.NewPGXRecipesRepository(pool)

	tracker := service.NewRunTracker()
	contactsService := service.NewContactsService(contactsRepo, normalizer, tracker, logger)
	recipesService := service.NewRecipesService(recipesRepo, contactsRepo, dispatcher, tracker, logger)
	qualifierService := service.NewQualifierService(contactsService, contactsRepo, dispatcher, tracker, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(logger))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Contacts:  handler.NewContactsHandler(contactsService, recipesService),
		Recipes:   handler.NewRecipesHandler(recipesService),
		Runs:      handler.NewRunsHandler(recipesService, qualifierService),
		Qualifier: handler.NewQualifierHandler(qualifierService),
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.Port), zap.String("enrich_backend", cfg.Enrich.Backend))
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
