// Package logger builds log/slog loggers for the service.
//
// New applies functional options on top of production-safe defaults (JSON,
// info level, stdout). WithEnvironment switches to human-readable text at debug
// level outside production. Context extractors registered with
// WithContextExtractors add request-scoped attributes such as the request id
// and the authenticated user id to every record logged with a *Context method.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "mymechanic"),
//		logger.WithContextExtractors(requestid.LoggerExtractor(), auth.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "webhook processed", logger.EventID(evt.ID))
//
// The attribute helpers in attr.go keep key names consistent across packages.
package logger
