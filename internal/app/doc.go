// Package app provides application initialization and lifecycle
// management for the ReportPulse server. It wires configuration,
// logging, telemetry, the pipeline orchestrator, the scheduler and the
// HTTP API together at startup and handles graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//  1. Load configuration from file and environment
//  2. Initialize logging and observability
//  3. Create the pipeline orchestrator and run service
//  4. Set up the HTTP router and server
//  5. Start the server and the job scheduler
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM so that active requests complete,
// telemetry is flushed and the log file is closed before the process
// exits. All initialization errors are returned to the caller; the
// package never calls os.Exit directly.
package app
