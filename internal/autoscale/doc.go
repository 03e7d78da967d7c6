// Package autoscale sizes the transcription node pool from queue depth. It
// is a pure control loop: observe, compute a clamped target, request the
// change, and let the cooldown keep the pool stable under bursty load.
package autoscale
