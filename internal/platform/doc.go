// Package platform integrates with the remote transcription execution
// platform. It submits per-pass work units, polls them to completion, and
// exposes node pool scaling for the capacity controller.
package platform
