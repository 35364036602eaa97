// Package cli holds the helpers shared by the webdis commands: error types
// that map to exit codes, signal handling for graceful shutdown and output
// formatting for the validate and version commands.
//
// # Exit codes
//
// ExitCode maps the error returned by a command to a process exit status:
//
//	0  success
//	1  runtime failure (CommandError or any other error)
//	2  invalid configuration (ConfigError or config.ValidationError)
//
// # Signals
//
// SetupSignalHandler returns a context canceled on the first SIGINT or
// SIGTERM. A second signal exits the process immediately, so an operator can
// always interrupt a shutdown that is stuck draining connections.
package cli
