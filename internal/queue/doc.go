// Package queue persists assets, jobs, transcripts and labels in the shared
// relational store and exposes the compare-and-swap updates the scheduler
// relies on.
//
// The store is the only coordination medium between worker processes. Claim
// is a single conditional UPDATE guarded by status and attempt count, and
// every outcome write is fenced on the claim token written at claim time, so
// a worker whose job was reclaimed cannot overwrite the new owner's result.
//
// SQLite (modernc.org/sqlite) is the default backend; PostgreSQL is reached
// through pgx's database/sql adapter. Both drivers are wrapped with sqlmw so
// every statement feeds the store metrics. Queries are written with `?`
// placeholders and rebound for postgres. Schema changes ship as goose
// migrations embedded from migrations/.
package queue
