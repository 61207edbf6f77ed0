package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI   LLMProvider = "openai"
	ProviderYandex   LLMProvider = "yandex"
	ProviderScripted LLMProvider = "scripted"
)

type TraceSink string

const (
	SinkFile   TraceSink = "file"
	SinkSQLite TraceSink = "sqlite"
	SinkNone   TraceSink = "none"
)

type Config struct {
	// Transport
	HTTPAddr         string `env:"HTTP_ADDR" envDefault:":3000"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	MessageParseMode string `env:"MESSAGE_PARSE_MODE" envDefault:""`

	// LLM settings
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	Temperature      float32       `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	MaxTokens        int           `env:"OPENAI_MAX_TOKENS" envDefault:"500"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"30s"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Scripted provider: fail the completion when history reaches this length (0 disables)
	ScriptedFailAtHistoryLen int `env:"SCRIPTED_FAIL_AT_HISTORY_LEN" envDefault:"0"`

	// Tracing
	TraceSink    TraceSink `env:"TRACE_SINK" envDefault:"file"`
	TraceLogPath string    `env:"TRACE_LOG_PATH" envDefault:"logs/trace.jsonl"`
	TraceDBPath  string    `env:"TRACE_DB_PATH" envDefault:"data/trace.db"`

	// Reports
	ReportSchedule string `env:"REPORT_SCHEDULE" envDefault:"0 21 * * *"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	switch cfg.TraceSink {
	case SinkFile, SinkSQLite, SinkNone:
	default:
		return nil, fmt.Errorf("unknown TRACE_SINK %q", cfg.TraceSink)
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", cfg.MaxTokens)
	}
	return cfg, nil
}

func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}
