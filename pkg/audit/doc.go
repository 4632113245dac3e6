// Package audit records billing and chat actions for later review.
//
// Logger fills user, request and IP fields from the request context through
// pluggable extractors, so the package does not depend on the auth or
// requestid packages:
//
//	w := audit.NewAsyncWriter(audit.NewPGStorage(pool), log, audit.AsyncOptions{})
//	defer w.Close(ctx)
//
//	a := audit.NewLogger(w,
//		audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
//			id := requestid.FromContext(ctx)
//			return id, id != ""
//		}),
//	)
//	_ = a.Log(ctx, audit.ActionPaymentFailed, audit.WithUserID(userID))
//
// Audit writes never fail the business operation. AsyncWriter drops events
// when its buffer is full and logs storage errors instead of returning them.
package audit
