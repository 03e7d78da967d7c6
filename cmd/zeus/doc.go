// Package main hosts the Zeus CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API: job submission, queue inspection, cancel and
// retry operations, cluster scaling, and configuration scaffolding. It
// centralizes configuration resolution, server discovery, and output
// rendering so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
