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

	"github.com/barstock/barstock-backend/internal/inventory/events"
	"github.com/barstock/barstock-backend/internal/inventory/handler"
	"github.com/barstock/barstock-backend/internal/inventory/repository"
	"github.com/barstock/barstock-backend/internal/inventory/service"
	"github.com/barstock/barstock-backend/pkg/config"
	"github.com/barstock/barstock-backend/pkg/database"
	"github.com/barstock/barstock-backend/pkg/httputil"
	"github.com/barstock/barstock-backend/pkg/logger"
	"github.com/barstock/barstock-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Apply pending schema migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	eventPublisher := events.NewPublisher(pub, log)

	// Initialize repositories
	materialRepo := repository.NewMaterialRepository(db)
	lotRepo := repository.NewLotRepository(db)
	itemRepo := repository.NewItemRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	orderRepo := repository.NewPurchaseOrderRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	// Initialize services
	catalogService := service.NewCatalogService(db, materialRepo, auditRepo, log)
	ledgerService := service.NewLedgerService(db, itemRepo, movementRepo, auditRepo, eventPublisher, log)
	receivingService := service.NewReceivingService(db, catalogService, lotRepo, itemRepo, movementRepo, orderRepo, auditRepo, eventPublisher, cfg.Inventory, log)
	queryService := service.NewQueryService(itemRepo, movementRepo, materialRepo, cfg.Inventory, log)
	orderService := service.NewOrderService(db, orderRepo, log)
	locationService := service.NewLocationService(locationRepo, itemRepo, log)

	// Initialize handlers
	materialHandler := handler.NewMaterialHandler(catalogService, log)
	receivingHandler := handler.NewReceivingHandler(receivingService, log)
	movementHandler := handler.NewMovementHandler(ledgerService, log)
	queryHandler := handler.NewQueryHandler(queryService, log)
	orderHandler := handler.NewPurchaseOrderHandler(orderService, log)
	locationHandler := handler.NewLocationHandler(locationService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Metrics)
	r.Use(httputil.ActorContext)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Actor-ID", "X-Actor-Name"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", httputil.MetricsHandler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Material catalog
		r.Route("/materials", func(r chi.Router) {
			r.Get("/", materialHandler.List)
			r.Post("/", materialHandler.Create)
			r.Get("/{id}", materialHandler.Get)
			r.Put("/{id}", materialHandler.Update)
			r.Delete("/{id}", materialHandler.Deactivate)
			r.Put("/{id}/density", materialHandler.UpdateDensity)
			r.Get("/{id}/density-history", materialHandler.ListDensityHistory)
			r.Get("/{id}/aliases", materialHandler.ListAliases)
			r.Post("/{id}/aliases", materialHandler.AddAlias)
		})

		// Receiving and lots
		r.Post("/receivings", receivingHandler.Confirm)
		r.Route("/lots", func(r chi.Router) {
			r.Get("/", receivingHandler.ListLots)
			r.Get("/{id}", receivingHandler.GetLot)
			r.Get("/{id}/items", receivingHandler.ListLotItems)
			r.Post("/{id}/inspection", receivingHandler.Inspect)
		})

		// Movement ledger
		r.Route("/movements", func(r chi.Router) {
			r.Post("/", movementHandler.Record)
			r.Get("/{id}", movementHandler.Get)
			r.Put("/{id}", movementHandler.Edit)
			r.Delete("/{id}", movementHandler.Delete)
		})

		// Items and stock queries
		r.Route("/items", func(r chi.Router) {
			r.Get("/{id}", queryHandler.GetItem)
			r.Get("/{id}/history", queryHandler.ItemHistory)
			r.Put("/{id}/location", locationHandler.AssignItem)
			r.Get("/by-identifier/{identifier}", queryHandler.GetItemByIdentifier)
		})
		r.Get("/stock", queryHandler.StockSummary)
		r.Get("/stock/low", queryHandler.LowStock)
		r.Get("/stock/equivalent-groups", queryHandler.EquivalentGroups)

		// Purchase orders
		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/", orderHandler.Create)
			r.Post("/import", orderHandler.Import)
			r.Get("/{id}", orderHandler.Get)
			r.Delete("/{id}", orderHandler.Cancel)
		})

		// Storage locations
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", locationHandler.List)
			r.Post("/", locationHandler.Create)
			r.Get("/{id}", locationHandler.Get)
			r.Put("/{id}", locationHandler.Update)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
