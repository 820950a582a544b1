package app

import "time"

// Operation tracks one CLI invocation. Status starts as "success" and is
// flipped by Fail; the final state is logged when the app closes.
type Operation struct {
	RunID   string
	Command string
	Status  string // "success" or "error"
	Started time.Time
}

// NewOperation creates an operation for command started at the given time.
func NewOperation(command string, started time.Time) *Operation {
	return &Operation{
		RunID:   newRunID(started),
		Command: command,
		Status:  "success",
		Started: started,
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Elapsed returns the time since the operation started, to the millisecond.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.Started).Round(time.Millisecond)
}
