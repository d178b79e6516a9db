// Package scheduler triggers the poll cycle on a robfig/cron schedule.
//
// Ticks never overlap: the job is wrapped with cron.DelayIfStillRunning, so a
// tick that fires while the previous run is still in flight waits for it
// instead of running concurrently.
package scheduler
