package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ai-concierge/internal/app"
	"ai-concierge/internal/config"
	"ai-concierge/internal/mcpserver"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	// stdout carries the MCP protocol
	log.SetOutput(os.Stderr)

	cfg := config.New()
	a, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := mcpserver.New(a.Orchestrator).Run(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
