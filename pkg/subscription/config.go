package subscription

import "time"

// StripeConfig configures the Stripe billing provider.
type StripeConfig struct {
	SecretKey     string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	Timeout       time.Duration `env:"STRIPE_TIMEOUT" envDefault:"10s"`
	// Backend URL override, used by tests and stripe-mock.
	APIURL string `env:"STRIPE_API_URL"`
}

// CatalogConfig configures the plan catalog.
// Plan display data may come from a YAML file; price ids always come from the environment.
type CatalogConfig struct {
	Path string `env:"PLAN_CATALOG_PATH"`

	PriceTrial        string `env:"STRIPE_PRICE_TRIAL"`
	PriceBasic        string `env:"STRIPE_PRICE_BASIC"`
	PriceStarter      string `env:"STRIPE_PRICE_STARTER"`
	PriceProfessional string `env:"STRIPE_PRICE_PROFESSIONAL"`
	PriceUnlimited    string `env:"STRIPE_PRICE_UNLIMITED"`

	DefaultPlanID string `env:"DEFAULT_PLAN_ID" envDefault:"starter"`
	TrialCap      int    `env:"TRIAL_PLAN_CAP" envDefault:"2"`
}

func (c CatalogConfig) prices() map[string]string {
	return map[string]string{
		"trial":        c.PriceTrial,
		"basic":        c.PriceBasic,
		"starter":      c.PriceStarter,
		"professional": c.PriceProfessional,
		"unlimited":    c.PriceUnlimited,
	}
}

// LedgerConfig tunes the Redis fast path of the webhook ledger.
type LedgerConfig struct {
	CacheTTL    time.Duration `env:"WEBHOOK_LEDGER_CACHE_TTL" envDefault:"72h"`
	CachePrefix string        `env:"WEBHOOK_LEDGER_CACHE_PREFIX" envDefault:"webhook:processed:"`
}
