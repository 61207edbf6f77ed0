// Package app builds the conversation service from configuration. Every
// front-end binary (HTTP, Telegram, MCP, CLI) shares it.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-concierge/internal/analytics"
	"ai-concierge/internal/config"
	"ai-concierge/internal/conversation"
	"ai-concierge/internal/llm"
	"ai-concierge/internal/session"
	"ai-concierge/internal/storage"
	"ai-concierge/internal/trace"
)

type App struct {
	Config       *config.Config
	Gateway      llm.Client
	Sink         storage.Recorder
	Recorder     *trace.Recorder
	Store        *session.Store
	Orchestrator *conversation.Orchestrator
}

// New wires the gateway, trace sink and orchestrator. A sink that cannot be
// opened is logged and tracing continues on the process log only.
func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}

	gateway, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	sink, err := OpenSink(cfg)
	if err != nil {
		logger.Printf("failed to init trace sink %s: %v", cfg.TraceSink, err)
		sink = nil
	}

	store := session.NewStore()
	rec := trace.NewRecorder(sink, logger)
	return &App{
		Config:       cfg,
		Gateway:      gateway,
		Sink:         sink,
		Recorder:     rec,
		Store:        store,
		Orchestrator: conversation.New(store, gateway, rec, cfg.CompletionTimeout),
	}, nil
}

// OpenSink opens the configured trace event store, or nil for "none".
func OpenSink(cfg *config.Config) (storage.Recorder, error) {
	switch cfg.TraceSink {
	case config.SinkFile:
		rec, err := storage.NewFileRecorder(cfg.TraceLogPath)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case config.SinkSQLite:
		rec, err := storage.NewSQLiteRecorder(cfg.TraceDBPath)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case config.SinkNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown trace sink %q", cfg.TraceSink)
	}
}

// DailyReport aggregates the sink's events for day.
func (a *App) DailyReport(day time.Time) (*analytics.DailyStats, error) {
	if a.Sink == nil {
		return nil, fmt.Errorf("trace sink disabled")
	}
	events, err := a.Sink.LoadEvents()
	if err != nil {
		return nil, fmt.Errorf("load trace events: %w", err)
	}
	return analytics.AnalyzeDailyEvents(events, day), nil
}

// LogDailyReport is the scheduled report job: it logs today's summary.
func (a *App) LogDailyReport(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stats, err := a.DailyReport(time.Now().UTC())
	if err != nil {
		return err
	}
	log.Printf("daily usage report\n%s", stats.GenerateReportSummary())
	return nil
}

func (a *App) Close() error {
	if a.Sink == nil {
		return nil
	}
	return a.Sink.Close()
}
