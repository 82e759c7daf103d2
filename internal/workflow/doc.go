// Package workflow schedules the pipeline stages inside the daemon.
//
// The Manager owns one goroutine per registered job. Interval jobs run once
// at start and then on a fixed period; the analytics job runs once a day at
// a wall-clock time in the configured time zone. Every invocation goes
// through stageexec.Run, so a job never overlaps itself either within this
// process or with a one-shot `orbix run` in another.
//
// Before any job starts, registered recoverers repair state left behind by
// an unclean shutdown (renders stuck in PROCESSING). The Manager records the
// last run, result and error of each job for the status API.
package workflow
