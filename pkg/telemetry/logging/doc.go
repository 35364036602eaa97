// Package logging configures log/slog for webdis.
//
// Setup reads verbosity, logfile, log_fsync and the telemetry.logging
// section and installs the result as the slog default. The rest of the
// code logs through the package-level slog functions:
//
//	slog.InfoContext(ctx, "subscription opened", "channels", chans)
//
// Records logged with a context pick up request_id and session_id set by
// WithRequestID and WithSessionID.
//
// Verbosity follows the 0-8 scale of the configuration file: 0-2 error,
// 3 warn, 4-5 info, 6 and above debug.
//
// Command arguments are only logged at debug level and go through
// CommandArgs, which hides credentials passed to AUTH, HELLO and similar
// commands.
package logging
