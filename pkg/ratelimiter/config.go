package ratelimiter

import "time"

// Limits holds the request budgets for the public API.
type Limits struct {
	ChatRequests int           `env:"RATE_LIMIT_CHAT_REQUESTS" envDefault:"10"`
	ChatWindow   time.Duration `env:"RATE_LIMIT_CHAT_WINDOW" envDefault:"1m"`
	APIRequests  int           `env:"RATE_LIMIT_API_REQUESTS" envDefault:"50"`
	APIWindow    time.Duration `env:"RATE_LIMIT_API_WINDOW" envDefault:"15m"`
}

func (l Limits) Chat() Config { return PerWindow(l.ChatRequests, l.ChatWindow) }

func (l Limits) API() Config { return PerWindow(l.APIRequests, l.APIWindow) }
