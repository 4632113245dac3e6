package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mymechanic/modules/assistant"
	"github.com/dmitrymomot/mymechanic/modules/billing"
	"github.com/dmitrymomot/mymechanic/modules/conversations"
	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/chat"
	"github.com/dmitrymomot/mymechanic/pkg/clientip"
	"github.com/dmitrymomot/mymechanic/pkg/config"
	"github.com/dmitrymomot/mymechanic/pkg/conversation"
	"github.com/dmitrymomot/mymechanic/pkg/email"
	"github.com/dmitrymomot/mymechanic/pkg/environment"
	"github.com/dmitrymomot/mymechanic/pkg/httpserver"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
	"github.com/dmitrymomot/mymechanic/pkg/pg"
	"github.com/dmitrymomot/mymechanic/pkg/quota"
	"github.com/dmitrymomot/mymechanic/pkg/ratelimiter"
	"github.com/dmitrymomot/mymechanic/pkg/redis"
	"github.com/dmitrymomot/mymechanic/pkg/requestid"
	"github.com/dmitrymomot/mymechanic/pkg/subscription"
	"github.com/dmitrymomot/mymechanic/pkg/telemetry"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"mymechanic-api"`
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	config.SetEnvFiles(".env", ".env.local")

	var (
		app       appConfig
		httpCfg   httpserver.Config
		pgCfg     pg.Config
		redisCfg  redis.Config
		authCfg   auth.Config
		stripeCfg subscription.StripeConfig
		catalogCf subscription.CatalogConfig
		ledgerCfg subscription.LedgerConfig
		chatCfg   chat.Config
		emailCfg  email.Config
		billCfg   billing.Config
		limits    ratelimiter.Limits
		telCfg    telemetry.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&app) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&pgCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&authCfg) },
		func() error { return config.Load(&stripeCfg) },
		func() error { return config.Load(&catalogCf) },
		func() error { return config.Load(&ledgerCfg) },
		func() error { return config.Load(&chatCfg) },
		func() error { return config.Load(&emailCfg) },
		func() error { return config.Load(&billCfg) },
		func() error { return config.Load(&limits) },
		func() error { return config.Load(&telCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	env := environment.Parse(app.Env)
	ctx = environment.WithContext(ctx, env)

	tel, err := telemetry.New(ctx, telCfg, env)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	log := logger.New(
		logger.WithEnvironment(env, app.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), auth.LoggerExtractor()),
		logger.WithTee(tel.LogHandler(slog.LevelInfo)),
	)
	slog.SetDefault(log)

	metrics, err := telemetry.NewMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	tp := tel.TracerProvider()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	var rdb *goredis.Client
	if redisCfg.Enabled {
		rdb, err = redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	// Audit trail.
	auditWriter := audit.NewAsyncWriter(audit.NewPGStorage(pool), log, audit.AsyncOptions{})
	auditor := audit.NewLogger(auditWriter,
		audit.WithUserIDExtractor(func(ctx context.Context) (string, bool) {
			id, ok := auth.IdentityFromContext(ctx)
			return id.UserID, ok
		}),
		audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
			id := requestid.FromContext(ctx)
			return id, id != ""
		}),
		audit.WithIPExtractor(func(ctx context.Context) (string, bool) {
			ip := clientip.FromContext(ctx)
			return ip, ip != ""
		}),
	)

	// Billing.
	catalog, err := subscription.LoadCatalog(catalogCf)
	if err != nil {
		return err
	}
	for _, w := range catalog.Warnings() {
		log.Warn("plan catalog", slog.String("warning", w))
	}

	provider, err := subscription.NewStripeProvider(stripeCfg, log)
	if err != nil {
		return err
	}

	var sender email.EmailSender
	if emailCfg.Enabled() {
		if sender, err = email.NewPostmarkClient(emailCfg); err != nil {
			return err
		}
	} else {
		sender = email.NewDevSender(emailCfg.DevDir, log)
	}
	notifier := subscription.NewEmailNotifier(sender, catalog, billCfg.URL(billCfg.PortalReturnPath), log)

	var ledger subscription.Ledger = subscription.NewPGLedger(pool)
	if rdb != nil {
		ledger = subscription.NewCachedLedger(ledger, rdb, ledgerCfg)
	}

	subs := subscription.NewPGStore(pool)
	subOpts := []subscription.Option{
		subscription.WithLogger(log),
		subscription.WithMetrics(metrics),
		subscription.WithAuditor(auditor),
		subscription.WithTracerProvider(tp),
	}
	reconciler := subscription.NewReconciler(subs, ledger, provider, catalog,
		append(subOpts, subscription.WithNotifier(notifier))...)
	checkout := subscription.NewCheckout(subs, provider, catalog, subOpts...)
	accessGate := subscription.NewGate(subs, subOpts...)

	// Chat.
	model, err := chat.NewAnthropicModel(chatCfg)
	if err != nil {
		return err
	}
	chatSvc := chat.NewService(model,
		chat.WithLogger(log),
		chat.WithMetrics(metrics),
		chat.WithAuditor(auditor),
		chat.WithHistory(chat.NewPGHistory(pool)),
		chat.WithTracerProvider(tp),
		chat.WithTimeout(chatCfg.Timeout),
	)
	quotaGate := quota.NewGate(quota.NewPGStore(pool), catalog.MonthlyLimit,
		quota.WithLogger(log),
		quota.WithMetrics(metrics),
	)

	// Rate limiting.
	var limiterStore ratelimiter.Store
	if rdb != nil {
		limiterStore = ratelimiter.NewRedisStore(rdb, "ratelimit:")
	} else {
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		limiterStore = mem
	}
	apiBucket, err := ratelimiter.NewBucket(limiterStore, limits.API())
	if err != nil {
		return err
	}
	chatBucket, err := ratelimiter.NewBucket(limiterStore, limits.Chat())
	if err != nil {
		return err
	}

	verifier, err := auth.NewHS256Verifier(authCfg.JWTSecret, authCfg.JWTAudience)
	if err != nil {
		return err
	}
	authenticate := auth.Middleware(verifier)

	billingHandler := billing.NewHandler(billCfg, reconciler, checkout, subs, catalog, authenticate, log)
	chatHandler := assistant.NewHandler(chatSvc, quotaGate, log,
		authenticate,
		ratelimiter.Middleware(chatBucket, ratelimiter.ByUser,
			ratelimiter.WithLogger(log),
			ratelimiter.WithMessage("Too many messages, please slow down"),
		),
		accessGate.Middleware,
	)
	savedSvc := conversation.NewService(conversation.NewPGStore(pool), catalog.SavedChatLimit,
		conversation.WithLogger(log),
		conversation.WithAuditor(auditor),
	)
	savedHandler := conversations.NewHandler(savedSvc, log, authenticate, accessGate.Middleware)

	readiness := []func(context.Context) error{pg.Healthcheck(pool)}
	if rdb != nil {
		readiness = append(readiness, redis.Healthcheck(rdb))
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		requestid.Middleware,
		clientip.Middleware,
		telemetry.Middleware(tp),
	)
	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, readiness...))
	r.Route("/api", func(r chi.Router) {
		r.Use(ratelimiter.Middleware(apiBucket, ratelimiter.ByIP, ratelimiter.WithLogger(log)))
		r.Mount("/subscriptions", billingHandler.Handle())
		r.Mount("/chat", chatHandler.Handle())
		r.Mount("/conversations", savedHandler.Handle())
	})

	server := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		// Hooks run in order once in-flight requests have finished.
		httpserver.WithShutdownHook("quota", quotaGate.Close),
		httpserver.WithShutdownHook("notifier", notifier.Close),
		httpserver.WithShutdownHook("chat", chatSvc.Close),
		httpserver.WithShutdownHook("audit", auditWriter.Close),
		httpserver.WithShutdownHook("telemetry", tel.Shutdown),
	)

	log.Info("starting server",
		slog.String("addr", httpCfg.Addr),
		slog.Int("plans", len(catalog.Public())),
		slog.Duration("model_timeout", chatCfg.Timeout),
	)

	started := time.Now()
	err = server.Run(ctx, r)
	log.Info("server stopped", logger.Duration(time.Since(started)))
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
