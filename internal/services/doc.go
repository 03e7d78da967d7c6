// Package services defines shared utilities consumed by the scheduler,
// platform client, and API layer.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, request IDs, and lifecycle stages
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent classifications (transient vs terminal).
//
// Use these helpers when wiring new orchestration logic so operational
// behaviour (error handling, observability, retries) stays uniform across the
// pipeline.
package services
