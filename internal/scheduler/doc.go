// Package scheduler claims queued jobs and drives them through dispatch,
// transcription, consolidation, and validation to a terminal state. Job
// ownership is enforced by the store's compare-and-swap transitions, so a
// worker that loses a swap releases the job immediately.
package scheduler
