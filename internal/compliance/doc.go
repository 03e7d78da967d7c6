// Package compliance scores consolidated transcripts against accessibility
// profiles (WCAG 2.1 AA, EAA, Section 508).
//
// Each profile resolves to concrete thresholds for reading speed, caption
// duration, and caption length. Validation produces an immutable report with
// blocking issues, non-blocking warnings, and a deterministic 0-100 score.
// A failing score is still a successful validation: job completion reflects
// processing finished, not compliance achieved.
package compliance
