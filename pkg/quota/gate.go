package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/mymechanic/pkg/logger"
)

// LimitFunc returns the monthly message limit of a plan, Unlimited for none.
type LimitFunc func(planID string) int

// Metrics receives quota counters. *telemetry.Metrics satisfies it.
type Metrics interface {
	QuotaExhausted(ctx context.Context, planID string)
}

// Gate checks and commits monthly message quotas.
type Gate struct {
	store         Store
	limits        LimitFunc
	log           *slog.Logger
	metrics       Metrics
	now           func() time.Time
	commitTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Gate)

func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(g *Gate) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithClock replaces time.Now, which decides the current month.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithCommitTimeout bounds each background increment. Default 5s.
func WithCommitTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.commitTimeout = d
		}
	}
}

func NewGate(store Store, limits LimitFunc, opts ...Option) *Gate {
	if store == nil || limits == nil {
		panic("quota: gate requires a store and a limit func")
	}
	g := &Gate{
		store:         store,
		limits:        limits,
		log:           logger.Discard(),
		metrics:       noopMetrics{},
		now:           time.Now,
		commitTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("quota"))
	return g
}

// CheckAndReserve reports whether userID may send one more message this month.
// A stale row is reset before evaluation. Nothing is counted until Commit.
func (g *Gate) CheckAndReserve(ctx context.Context, userID, planID string) (Reservation, error) {
	limit := g.limits(planID)
	now := g.now().UTC()

	usage, err := g.store.Current(ctx, userID, MonthToken(now), now)
	if limit < 0 {
		if err != nil {
			g.log.WarnContext(ctx, "failed to load usage for unlimited plan", logger.UserID(userID), logger.Error(err))
		}
		return Reservation{Allowed: true, Limit: Unlimited, Used: usage.Count, Remaining: Unlimited}, nil
	}
	if err != nil {
		return Reservation{}, err
	}

	remaining := max(limit-usage.Count, 0)
	res := Reservation{
		Allowed:   remaining > 0,
		Limit:     limit,
		Used:      usage.Count,
		Remaining: remaining,
	}
	if !res.Allowed {
		g.metrics.QuotaExhausted(ctx, planID)
		g.log.InfoContext(ctx, "monthly quota exhausted",
			logger.UserID(userID), logger.PlanID(planID), slog.Int("limit", limit), slog.Int("used", usage.Count))
	}
	return res, nil
}

// Commit counts one message in the background. ctx only supplies log values;
// the increment outlives the request. Failures are logged, never returned.
func (g *Gate) Commit(ctx context.Context, userID, planID string) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		g.log.WarnContext(ctx, "quota commit after close dropped", logger.UserID(userID), logger.Error(ErrGateClosed))
		return
	}

	limit := g.limits(planID)
	now := g.now().UTC()
	ctx = context.WithoutCancel(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, g.commitTimeout)
		defer cancel()

		count, ok, err := g.store.Increment(ctx, userID, MonthToken(now), limit, now)
		switch {
		case err != nil:
			g.log.ErrorContext(ctx, "failed to commit message usage", logger.UserID(userID), logger.Error(err))
		case !ok:
			g.log.WarnContext(ctx, "quota commit denied at limit", logger.UserID(userID), logger.PlanID(planID), slog.Int("limit", limit))
		default:
			g.log.DebugContext(ctx, "message usage committed", logger.UserID(userID), slog.Int("count", count))
		}
	}()
}

// Close stops accepting commits and waits for in-flight ones or until ctx ends.
func (g *Gate) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type noopMetrics struct{}

func (noopMetrics) QuotaExhausted(context.Context, string) {}
