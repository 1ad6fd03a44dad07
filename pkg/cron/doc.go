// Package cron runs a registry of recurring maintenance jobs.
//
// Each Job carries a handler and either a fixed interval or a standard
// five-field cron expression (parsed with robfig/cron, so ranges, steps,
// and weekday fields all behave as cron users expect). The scheduler
// ticks every ten seconds, evaluating all jobs under a single lock so two
// ticks can never overlap; handlers run inline, which means a slow
// handler delays the next tick. That is a deliberate trade-off in favour
// of no-overlap execution, not a bug.
//
// A failing job is retried with exponential backoff (5s doubling, capped
// at 60s) while its consecutive-failure count stays below the job's retry
// budget; after that it simply returns to its regular schedule. Failure
// never disables a job and jobs have no terminal state: they run for the
// scheduler's lifetime unless disabled or removed.
//
// Run results (trimmed to the last 100 per job) and job snapshots are
// written through a ResultStore for observability; storage failures are
// logged and never affect job execution.
package cron
