package task

import "github.com/phrazzld/txtreader/internal/protocol"

// Peer is the message channel to the isolated worker. The scheduler is its
// only user.
type Peer interface {
	// Send hands req to the worker without waiting for it to be processed.
	Send(req protocol.Request) error

	// Receive returns the stream of worker responses. It is closed when the
	// worker goes away.
	Receive() <-chan protocol.Response
}

// EnqueueOption customises a single task.
type EnqueueOption func(*Task)

// WithPrecondition installs a check that runs when the task is dispatched.
// A non-nil error rejects the task locally with the error's text and nothing
// is sent to the worker. Running the check at dispatch time means a task
// queued behind a load-file sees the outcome of that load.
func WithPrecondition(check func() error) EnqueueOption {
	return func(t *Task) {
		t.precondition = check
	}
}

// WithCompletionHook installs a function that sees the terminal response
// before any Then or Catch observer runs.
func WithCompletionHook(hook func(protocol.Response)) EnqueueOption {
	return func(t *Task) {
		t.onComplete = hook
	}
}
