package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/webdis/pkg/config"
)

// Job names.
const (
	JobIdleSweep = "pool.idle_sweep"
	JobLogSync   = "log.fsync"
)

// IdleSweeper is implemented by *pool.Manager.
type IdleSweeper interface {
	SweepIdle(ctx context.Context) int
}

// Syncer is implemented by *logging.Output.
type Syncer interface {
	Sync() error
}

// Every returns the cron descriptor for a fixed interval.
func Every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// IdleSweepJob discards broken idle connections.
func IdleSweepJob(pools IdleSweeper, interval time.Duration) Job {
	return Job{
		Name:     JobIdleSweep,
		Schedule: Every(interval),
		Run: func(ctx context.Context) {
			if n := pools.SweepIdle(ctx); n > 0 {
				slog.Info("discarded broken idle connections", "count", n)
			}
		},
	}
}

// LogSyncJob flushes the log file to disk.
func LogSyncJob(out Syncer, interval time.Duration) Job {
	return Job{
		Name:     JobLogSync,
		Schedule: Every(interval),
		Run: func(context.Context) {
			if err := out.Sync(); err != nil {
				slog.Warn("log fsync failed", "error", err)
			}
		},
	}
}

// Jobs returns the jobs cfg enables.
func Jobs(cfg *config.Config, pools IdleSweeper, out Syncer) []Job {
	var jobs []Job
	if cfg.Pool.IdleCheckInterval > 0 && pools != nil {
		jobs = append(jobs, IdleSweepJob(pools, cfg.Pool.IdleCheckInterval))
	}
	if cfg.LogFsync.Mode == config.FsyncInterval && out != nil {
		jobs = append(jobs, LogSyncJob(out, cfg.LogFsync.Interval))
	}
	return jobs
}
