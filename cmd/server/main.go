package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-concierge/internal/app"
	"ai-concierge/internal/config"
	"ai-concierge/internal/httpapi"
	"ai-concierge/internal/scheduler"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	a, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("failed to close trace sink: %v", err)
		}
	}()

	sched := scheduler.New(cfg.ReportSchedule)
	if a.Sink != nil {
		sched.SetReportFunction(a.LogDailyReport)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	srv := httpapi.NewServer(a.Orchestrator)
	go func() {
		log.Printf("HTTP API listening on %s (provider=%s)", cfg.HTTPAddr, cfg.LLMProvider)
		if err := srv.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.CompletionTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("failed to shutdown server gracefully: %v", err)
	}
}
