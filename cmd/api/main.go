package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/haloapotek/apotek-api/internal/database"
	"github.com/haloapotek/apotek-api/internal/handlers"
	"github.com/haloapotek/apotek-api/internal/repository"
	"github.com/haloapotek/apotek-api/internal/routes"
	"github.com/haloapotek/apotek-api/internal/service"
)

// Orders still unpaid after this long are cancelled by the background
// worker and their stock returned to the shelf.
const paymentDeadline = 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not load .env file. Relying on system environment variables.")
	}

	db, err := database.OpenDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := repository.NewMySQL(db)
	services := service.New(store)
	app := handlers.New(services)

	// --- Background worker: overdue-order cleanup ---
	go func() {
		interval := time.Hour
		if v := os.Getenv("OVERDUE_CHECK_INTERVAL"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				interval = d
			}
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Println("Background worker started: monitoring for overdue orders")
		for range ticker.C {
			n, err := services.Orders.CancelOverdue(context.Background(), paymentDeadline)
			if err != nil {
				log.Printf("Overdue-order sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Cancelled %d overdue order(s)", n)
			}
		}
	}()

	router := routes.SetupRouter(app, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting Halo Apotek API server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
