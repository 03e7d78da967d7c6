// Package api defines the transport-neutral service layer and DTOs shared by
// the HTTP server and the CLI. Services validate input, map store records to
// views, and never expose persistence types directly.
package api
