package llm

import (
	"context"
	"fmt"

	"quiz_mentor_backend/internal/config"
)

// NewProvider 按配置构建Provider，外层依次包上限时与重试：
// 调用方 → retry → timeout → 具体供应商
func NewProvider(ctx context.Context, cfg config.AIConfig) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithRetry(WithTimeout(base, cfg.Timeout), cfg.Retry), nil
}
