package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/tobiasagyasta/recon-api/internal/config"
	"github.com/tobiasagyasta/recon-api/internal/database"
	"github.com/tobiasagyasta/recon-api/internal/handlers"
	"github.com/tobiasagyasta/recon-api/internal/middleware"
	"github.com/tobiasagyasta/recon-api/internal/services"
	"github.com/tobiasagyasta/recon-api/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	pool, err := database.Connect(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBConnectionTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	log.Println("✓ Connected to database successfully")

	// Stores
	txnStore := store.NewTransactionStore(pool)
	mutStore := store.NewMutationStore(pool)
	totalsStore := store.NewTotalsStore(pool)
	outletStore := store.NewOutletStore(pool)

	// Services
	directory := services.NewDirectory(outletStore, cfg.DirectoryCacheTTL)
	normalizer := services.NewNormalizer(directory)
	mutationParser := services.NewMutationParser()
	consolidator := services.NewConsolidator(txnStore, totalsStore, normalizer)
	ingestor := services.NewIngestor(normalizer, mutationParser, txnStore, mutStore, consolidator)
	matcher := services.NewMatcher(totalsStore, mutStore, directory)
	validator := services.NewFileValidator(cfg.MaxUploadBytes)

	log.Println("✓ Services initialized successfully")

	// Handlers
	ingestHandler := handlers.NewIngestHandler(ingestor, validator)
	consolidateHandler := handlers.NewConsolidateHandler(consolidator)
	reconcileHandler := handlers.NewReconcileHandler(matcher)
	outletsHandler := handlers.NewOutletsHandler(directory)

	app := fiber.New(fiber.Config{
		AppName: "recon API v1.0",
	})

	// Apply global middleware
	app.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check endpoint (public)
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "recon-api",
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	v1.Get("/ping", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})

	// Report and statement ingestion
	v1.Post("/reports/:platform/upload", ingestHandler.UploadReport)
	v1.Post("/mutations/upload", ingestHandler.UploadMutations)
	v1.Post("/mutations/consolidated", ingestHandler.UploadConsolidated)

	// Consolidation and reconciliation
	v1.Post("/consolidate", consolidateHandler.Consolidate)
	v1.Get("/reconcile", reconcileHandler.Reconcile)

	// Outlet directory boundary
	v1.Get("/outlets/resolve", outletsHandler.Resolve)
	v1.Post("/outlets/backfill", outletsHandler.Backfill)

	log.Println("✓ All routes configured successfully")
	log.Printf("🚀 recon API (%s) is running on :%d", cfg.Environment, cfg.Port)
	log.Fatal(app.Listen(fmt.Sprintf(":%d", cfg.Port)))
}
