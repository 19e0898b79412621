package interfaces

import "time"

// SchedulerStatus describes the state of the time trigger
type SchedulerStatus struct {
	Running   bool
	Tick      string
	LastTick  *time.Time
	NextTick  *time.Time
	LastError string
	Triggered int
	Skipped   int
}

// SchedulerService scans channel records on a fixed cron interval and runs
// every channel whose schedule matches
type SchedulerService interface {
	// Start the scheduler with a cron expression for the scan interval
	Start(tickExpr string) error

	// Stop the scheduler
	Stop() error

	// TickNow runs one scan immediately, outside the cron cadence
	TickNow() error

	// IsRunning returns true if scheduler is active
	IsRunning() bool

	// Status returns a snapshot of the scheduler state
	Status() SchedulerStatus
}
