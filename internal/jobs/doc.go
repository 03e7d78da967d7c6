// Package jobs persists transcription jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, priority
// dequeue, heartbeat tracking, stale-job recovery, and the compare-and-swap
// state transitions that enforce the job state machine. Job records capture
// pass results, the consolidated transcript, the compliance report, and
// registered output artifacts so other components coordinate without extra
// state.
//
// Claiming a job and every subsequent transition are guarded by a CAS on the
// current state, which gives each job at most one writer at a time while
// leaving reads unblocked. Treat this package as the single source of truth
// for job semantics; when you add new states or fields, update schema.sql and
// bump schemaVersion.
package jobs
