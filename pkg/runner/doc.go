// Package runner executes the engine's periodic maintenance jobs: digest
// flushes and purges, broadcast expiry sweeps, and connection registry
// sweeps. Each job runs on its own ticker in its own goroutine; a job error
// or panic is logged and the job keeps its schedule. Start blocks until the
// context is cancelled and every job goroutine has drained.
package runner
