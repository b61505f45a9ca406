package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pantryhub/pantry-backend/internal/inventory/consumers"
	"github.com/pantryhub/pantry-backend/internal/inventory/events"
	"github.com/pantryhub/pantry-backend/internal/inventory/handler"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/config"
	"github.com/pantryhub/pantry-backend/pkg/httputil"
	"github.com/pantryhub/pantry-backend/pkg/logger"
	"github.com/pantryhub/pantry-backend/pkg/messaging"
)

const serviceName = "pantry-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Str("storage", cfg.Storage.Driver).Msg("starting Pantry Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	plans := service.NewPlanProvider(store.plans, cfg.Plans.DefaultMaxItems, log)

	// RabbitMQ is optional; without it events are dropped and plans stay at
	// their stored or default values.
	var publisher service.EventPublisher
	var rmq *messaging.RabbitMQ
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		eventPublisher, err := events.NewInventoryEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = eventPublisher

		orgConsumer, err := consumers.NewOrganizationEventConsumer(rmq, plans, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create organization event consumer")
		}
		if err := orgConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start organization event consumer")
		}
	}

	// Services
	impact := service.NewImpactCalculator(cfg.Impact)
	reconciler := service.NewReconciler(store.stores, plans, impact, publisher, log)
	inventoryService := service.NewInventoryService(store.stores.Batches, cfg.Inventory.BatchListLimit)
	auditService := service.NewAuditService(store.stores.ChangeLog, cfg.Inventory.RecentActivityLimit)
	distributionService := service.NewDistributionService(store.stores.Distributions, cfg.Inventory.DistributionListLimit, log)
	barcodeService := service.NewBarcodeService(store.stores.Barcodes, store.stores.Batches)

	handlers := &handler.Handlers{
		Items:         handler.NewItemHandler(reconciler, inventoryService, log),
		Barcodes:      handler.NewBarcodeHandler(barcodeService, log),
		Activity:      handler.NewActivityHandler(auditService, log),
		Distributions: handler.NewDistributionHandler(reconciler, distributionService, log),
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Pantry-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.TenantMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": store.Health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Mount("/api/v1/inventory", handlers.Routes())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop consumers before draining HTTP
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
