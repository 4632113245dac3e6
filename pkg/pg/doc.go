// Package pg wires PostgreSQL into the service using pgx/v5.
//
// Connect builds a pgxpool.Pool from Config (loaded from PG_* environment
// variables) and retries while the database comes up. Migrate applies the goose
// SQL migrations under db/migrations before the HTTP server starts. Healthcheck
// plugs the pool into the readiness probe.
//
// Stores depend on the DB interface instead of *pgxpool.Pool; WithTx provides
// the transaction boundary for read-modify-write operations such as the
// subscription upsert. IsNotFoundError and IsDuplicateKeyError classify driver
// errors without leaking pgx types into callers.
package pg
