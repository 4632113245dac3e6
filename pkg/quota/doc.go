// Package quota meters chat messages per user per calendar month.
//
// CheckAndReserve runs on the request path and decides; Commit runs after a
// successful reply and counts. Commits happen in the background and are
// idempotent against the limit: the Postgres store increments only while the
// count is below the limit, so racing requests can never push a user past it.
//
//	gate := quota.NewGate(quota.NewPGStore(pool), catalog.MonthlyLimit, quota.WithLogger(log))
//	defer gate.Close(ctx)
//
//	res, err := gate.CheckAndReserve(ctx, userID, planID)
//	if err != nil || !res.Allowed {
//		// 500 or 429
//	}
//	// ... call the model ...
//	gate.Commit(ctx, userID, planID)
package quota
