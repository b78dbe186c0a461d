package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"docforest/internal/config"
	"docforest/internal/domain/repositories"
	"docforest/internal/handler"
	"docforest/internal/middleware"
	memoryStore "docforest/internal/repository/memory"
	mongoStore "docforest/internal/repository/mongo"
	postgresStore "docforest/internal/repository/postgres"
	"docforest/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store_driver", cfg.StoreDriver,
	)

	ctx := context.Background()

	// Create the record store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer closeStore()

	// Subscribe and wait for the initial snapshot
	watcher, err := service.NewWatcher(ctx, store, logger)
	if err != nil {
		log.Fatalf("Failed to start snapshot watcher: %v", err)
	}
	defer watcher.Close()

	logger.Info("initial snapshot loaded", "records", watcher.Index().Len())

	// Create services
	mutator := service.NewMutator(store, watcher, cfg.Limits, logger)

	// Create handlers
	recordHandler := handler.NewRecordHandler(mutator, watcher, logger)
	treeHandler := handler.NewTreeHandler(watcher, logger)
	selectionHandler := handler.NewSelectionHandler(mutator, logger)
	draftHandler := handler.NewDraftHandler(mutator, cfg.Limits.AutosaveDelay, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", recordHandler.HealthCheck)

	// Record routes
	mux.HandleFunc("GET /api/records", recordHandler.ListRecords)
	mux.HandleFunc("POST /api/records", recordHandler.CreateRecord)
	mux.HandleFunc("POST /api/records/delete", recordHandler.BulkDelete) // Must come before {id} route
	mux.HandleFunc("PATCH /api/records/{id}", recordHandler.UpdateRecord)
	mux.HandleFunc("POST /api/records/{id}/pin", recordHandler.TogglePin)
	mux.HandleFunc("POST /api/records/{id}/copy", recordHandler.CopyRecord)
	mux.HandleFunc("GET /api/records/{id}/breadcrumb", recordHandler.GetBreadcrumb)

	// Tree projection
	mux.HandleFunc("GET /api/tree", treeHandler.GetTree)

	// Editor draft routes
	mux.HandleFunc("PUT /api/records/{id}/draft", draftHandler.PutDraft)
	mux.HandleFunc("POST /api/records/{id}/draft/flush", draftHandler.FlushDraft)
	mux.HandleFunc("POST /api/records/{id}/draft/close", draftHandler.CloseDraft)

	// Selection routes
	mux.HandleFunc("GET /api/selection", selectionHandler.GetSelection)
	mux.HandleFunc("POST /api/selection/folder", selectionHandler.SetFolder)
	mux.HandleFunc("POST /api/selection/toggle", selectionHandler.Toggle)
	mux.HandleFunc("POST /api/selection/select-all", selectionHandler.SelectAll)
	mux.HandleFunc("POST /api/selection/clear", selectionHandler.Clear)
	mux.HandleFunc("POST /api/selection/delete", selectionHandler.DeleteSelected)

	// Build middleware chain
	var httpHandler http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Routes
	httpHandler = middleware.Recovery(logger)(httpHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-Client-ID", "X-Actor"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openStore creates the configured RecordStore implementation.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.RecordStore, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := postgresStore.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgresStore.NewStore(pool, tablePrefix(cfg.Environment), cfg.PollInterval, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected", "driver", "postgres")
		return store, func() { store.Close(); pool.Close() }, nil

	case "mongo":
		client, err := mongo.Connect(ctx, mongoOptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		store := mongoStore.NewStore(client.Database(cfg.MongoDB), logger)
		logger.Info("database connected", "driver", "mongo")
		return store, func() {
			store.Close()
			_ = client.Disconnect(context.Background())
		}, nil

	default:
		return memoryStore.NewStore(logger), func() {}, nil
	}
}

// tablePrefix separates dev/test/prod tables the same way the rest of the
// deployment does.
func tablePrefix(env string) string {
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}
