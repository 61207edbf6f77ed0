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
	"ai-concierge/internal/scheduler"
	"ai-concierge/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	a, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer a.Close()

	sched := scheduler.New(cfg.ReportSchedule)
	if a.Sink != nil {
		sched.SetReportFunction(a.LogDailyReport)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	bot, err := telegram.New(cfg.TelegramBotToken, a.Orchestrator, cfg.MessageParseMode)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	bot.Start(ctx)
}
