package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"mercator-hq/webdis/pkg/config"
)

// Output is the destination of log records: stderr, or an append-only
// logfile synced according to log_fsync.
type Output struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
	mode config.FsyncMode
}

// OpenOutput opens path for appending. An empty path logs to stderr and
// ignores fsync.
func OpenOutput(path string, fsync config.LogFsync) (*Output, error) {
	if path == "" {
		return &Output{w: os.Stderr, mode: config.FsyncAuto}, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open logfile: %w", err)
	}
	return &Output{w: f, file: f, mode: fsync.Mode}, nil
}

// Write writes one record. In "all" mode the file is synced before
// returning.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, err := o.w.Write(p)
	if err != nil {
		return n, err
	}
	if o.mode == config.FsyncAll && o.file != nil {
		if err := o.file.Sync(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Sync flushes the logfile to stable storage. It is a no-op for stderr.
func (o *Output) Sync() error {
	if o == nil || o.file == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Sync()
}

// Close syncs and closes the logfile.
func (o *Output) Close() error {
	if o == nil || o.file == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.file.Sync()
	return o.file.Close()
}

// Setup builds the process logger from the configuration, installs it as
// the slog default and returns its Output so the caller can close it and
// schedule interval syncs.
//
// The level comes from telemetry.logging.level when set, otherwise from
// verbosity.
func Setup(cfg *config.Config) (*Output, error) {
	out, err := OpenOutput(cfg.Logfile, cfg.LogFsync)
	if err != nil {
		return nil, err
	}

	level := cfg.Telemetry.Logging.Level
	if level == "" {
		level = LevelFromVerbosity(cfg.LogVerbosity()).String()
	}

	logger, err := New(Config{
		Level:     level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    out,
	})
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	slog.SetDefault(logger)
	return out, nil
}
