// Package maintenance runs the gateway's periodic background jobs on a
// cron scheduler.
//
// Two jobs exist today:
//   - pool.idle_sweep: health-checks idle backend connections every
//     pool.idle_check_interval and discards the broken ones
//   - log.fsync: syncs the log file every N milliseconds when log_fsync
//     is a number
//
// Schedules use cron syntax, including the "@every <duration>" descriptor.
// Intervals shorter than one second run once per second.
package maintenance
