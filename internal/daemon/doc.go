// Package daemon wires the job store, scheduler, capacity controller, and
// HTTP API into a single long-running process guarded by a lock file.
package daemon
