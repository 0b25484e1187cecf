package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/Veraticus/invoice-chaser/internal/llm"
	"github.com/spf13/viper"
)

// createAssistant builds the extraction and drafting model client from
// configuration. A missing API key is a configuration error.
func createAssistant() (*llm.Assistant, error) {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		provider = llm.ProviderAnthropic
	}

	cfg := llm.Config{
		Provider:    provider,
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Timeout:     viper.GetDuration("llm.timeout"),
	}

	var keyName, envName string
	switch provider {
	case llm.ProviderAnthropic:
		keyName, envName = "llm.anthropic_api_key", "ANTHROPIC_API_KEY"
	case llm.ProviderOpenAI:
		keyName, envName = "llm.openai_api_key", "OPENAI_API_KEY"
	default:
		return nil, fmt.Errorf("%w: unsupported llm provider %q", common.ErrInvalidConfig, provider)
	}

	cfg.APIKey = viper.GetString(keyName)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(envName)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key not found in %s or the %s environment variable",
			common.ErrMissingConfig, provider, keyName, envName)
	}

	assistant, err := llm.NewAssistant(cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s assistant: %w", provider, err)
	}

	return assistant, nil
}
