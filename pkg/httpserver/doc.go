// Package httpserver runs the API behind an http.Server with graceful shutdown.
//
// Run listens on the configured address and blocks until the context is
// canceled or the process receives SIGINT/SIGTERM. Shutdown first drains
// in-flight requests and then runs the registered shutdown hooks in order, which
// is where the composition root drains background work: pending quota commits,
// the audit queue, telemetry exporters.
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.WithShutdownHook("quota", quotaGate.Close),
//		httpserver.WithShutdownHook("audit", auditSink.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", "error", err)
//	}
package httpserver
