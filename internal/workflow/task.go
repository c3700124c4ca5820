package workflow

import "context"

// Task is the handle of one admitted backend call.
type Task struct {
	ID     uint64
	Kind   string
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled when the task settles or is invalidated.
func (t *Task) Context() context.Context { return t.ctx }

// Cmd performs backend I/O off the event thread. It must not touch the store;
// it returns the Commit that applies the outcome.
type Cmd func() Commit

// Commit applies a finished call on the event thread. It returns a follow-up
// Cmd when the transition chains into another call.
type Commit func() Cmd

// Run drives cmd synchronously on the calling goroutine, following chained
// commands until none is left.
func Run(cmd Cmd) {
	for cmd != nil {
		commit := cmd()
		if commit == nil {
			return
		}
		cmd = commit()
	}
}
