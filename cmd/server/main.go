package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/mfolsen/brewstock/internal/api"
	"github.com/mfolsen/brewstock/internal/config"
	"github.com/mfolsen/brewstock/internal/db"
	"github.com/mfolsen/brewstock/internal/imports"
	"github.com/mfolsen/brewstock/internal/middleware"
	"github.com/mfolsen/brewstock/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	productRepo := repository.NewProductRepository(conn.Pool)
	ingredientRepo := repository.NewIngredientRepository(conn.Pool)
	saleRepo := repository.NewSaleRepository(conn.Pool)
	receiptRepo := repository.NewImportReceiptRepository(conn.Pool)
	mappingRepo := repository.NewSavedMappingRepository(conn.Pool)
	logRepo := repository.NewImportLogRepository(conn.Pool)
	txRunner := repository.NewTxRunner(conn)

	// Create services and handlers
	importService := imports.NewService(productRepo, receiptRepo, mappingRepo, logRepo, txRunner)
	importHandler := imports.NewHTTPHandler(importService)
	catalogServer := api.NewServer(productRepo, ingredientRepo, saleRepo)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		importHandler.Routes(r)
		catalogServer.Routes(r)
	})

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(router)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting API server on %s", cfg.ServerAddr)
		log.Printf("Import endpoints available under http://localhost%s/api/imports", cfg.ServerAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
