package oracle

import (
	"context"
	"fmt"

	"github.com/marcus/taskpilot/internal/config"
)

// New builds the oracle selected by cfg.Provider.
func New(ctx context.Context, cfg config.OracleConfig) (Oracle, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey,
			WithBaseURL(cfg.BaseURL),
			WithModel(cfg.Model),
			WithAnthropicMaxTokens(cfg.MaxTokens),
			WithMaxRetries(cfg.MaxRetries),
			WithTimeout(cfg.Timeout),
		), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Timeout)
	case config.ProviderClaudeCLI:
		return NewClaudeCLI(WithBinaryPath(cfg.BinaryPath), WithCLITimeout(cfg.Timeout)), nil
	case config.ProviderCodexCLI:
		return NewCodexCLI(WithBinaryPath(cfg.BinaryPath), WithCLITimeout(cfg.Timeout)), nil
	case config.ProviderNone, "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// Configured reports whether cfg can plausibly reach a model.
func Configured(cfg config.OracleConfig) bool {
	switch cfg.Provider {
	case config.ProviderAnthropic, config.ProviderGemini:
		return cfg.APIKey != ""
	case config.ProviderClaudeCLI, config.ProviderCodexCLI:
		return true
	default:
		return false
	}
}
