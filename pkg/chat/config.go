package chat

import "time"

// Config configures the Anthropic model and request limits.
type Config struct {
	APIKey     string        `env:"ANTHROPIC_API_KEY,required"`
	BaseURL    string        `env:"ANTHROPIC_BASE_URL"`
	ModelName  string        `env:"MODEL_NAME" envDefault:"claude-sonnet-4-5-20250929"`
	MaxTokens  int64         `env:"MODEL_MAX_TOKENS" envDefault:"4096"`
	Timeout    time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`
	MaxRetries int           `env:"MODEL_MAX_RETRIES" envDefault:"2"`
}
