package main

// Reconciliation worker:
//   go run ./cmd/worker

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hirelink-backend/internal/bootstrap"
	"hirelink-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	log.Printf("worker started interval=%s offer_window=%s confirm_window=%s",
		cfg.ReconcileInterval, cfg.OfferWindow, cfg.ConfirmWindow)

	app.Reconciler.Run(ctx, cfg.ReconcileInterval)

	log.Printf("worker stopped")
}
