// Package subscription reconciles billing state from payment provider webhooks
// and gates product access on it.
//
// The moving parts:
//
//   - Store persists subscription rows (PGStore, MemoryStore). Rows are never
//     deleted; "current" means the newest row in pending, active, trialing or
//     incomplete.
//   - Ledger records webhook outcomes so redeliveries are skipped (PGLedger,
//     MemoryLedger, and CachedLedger as a Redis fast path).
//   - Checkout creates a provider customer and a pending row before handing
//     out a hosted checkout link, so the confirming webhook always finds a user.
//   - Reconciler verifies a delivery, checks the ledger, applies the typed
//     Event and records the outcome.
//   - Gate is HTTP middleware admitting only users with a current subscription.
//   - StripeProvider is the BillingProvider for Stripe.
//
// # Lifecycle
//
//	pending -> {incomplete, trialing, active} -> {active <-> past_due} -> canceled
//
// Transitions other than leaving canceled are last-write-wins: the most
// recently applied event decides the status. Canceled is terminal.
//
// # Wiring
//
//	catalog, _ := subscription.LoadCatalog(catalogCfg)
//	provider, _ := subscription.NewStripeProvider(stripeCfg, log)
//	store := subscription.NewPGStore(pool)
//	ledger := subscription.NewCachedLedger(subscription.NewPGLedger(pool), rdb, ledgerCfg)
//
//	checkout := subscription.NewCheckout(store, provider, catalog, subscription.WithLogger(log))
//	reconciler := subscription.NewReconciler(store, ledger, provider, catalog,
//		subscription.WithLogger(log),
//		subscription.WithAuditor(auditLog),
//		subscription.WithNotifier(notifier),
//	)
//	gate := subscription.NewGate(store)
package subscription
