package llm

import (
	"fmt"
	"strings"

	"ai-concierge/internal/config"
)

const (
	ProviderOpenAI   = "openai"
	ProviderYandex   = "yandex"
	ProviderScripted = "scripted"
)

// Factory creates LLM clients with consistent logic
type Factory struct {
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
	Sampling           Sampling
	FailAtHistoryLen   int
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
		Sampling:           Sampling{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
		FailAtHistoryLen:   cfg.ScriptedFailAtHistoryLen,
	}
}

func (f *Factory) CreateClient(provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		if f.OpenaiAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for provider %s", provider)
		}
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, model, f.OpenRouterReferrer, f.OpenRouterTitle, f.Sampling), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	case ProviderScripted:
		return NewScripted(f.FailAtHistoryLen), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}

// ModelName reports the model identifier of c when the client exposes one.
func ModelName(c Client) string {
	if m, ok := c.(interface{ Model() string }); ok {
		return m.Model()
	}
	return "unknown"
}
