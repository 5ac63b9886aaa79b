// Package workflow drives jobs through their stage handlers.
//
// The Manager owns one scheduling loop. Each tick reads a window of pending
// jobs, orders it by the kind priority table, claims the first candidate with
// a conditional update and dispatches it through the stage registry while a
// heartbeat goroutine keeps the claim fresh. The outcome is written back
// fenced on the claim token, and the Finalizer then derives the asset status
// from the asset's jobs.
//
// Jobs abandoned by a crashed worker are found by their stale heartbeat and
// returned to pending, or failed once their attempt budget is spent.
//
// Parallelism comes from running more worker processes against the same
// store; the claim is the only coordination between them.
package workflow
