package task

import (
	"errors"

	"github.com/phrazzld/txtreader/internal/protocol"
)

// Scheduler errors.
var (
	// ErrProtocol marks a broken invariant between controller and worker: a
	// response for a task that is not running, or a malformed progress value.
	ErrProtocol = errors.New("protocol violation")

	// ErrPeerClosed is raised when the worker goes away while a task runs.
	ErrPeerClosed = errors.New("worker connection closed")

	// ErrHalted prefixes the rejection of every task outstanding when the
	// scheduler halts on a fatal error.
	ErrHalted = errors.New("scheduler halted")

	// ErrClosed rejects tasks enqueued after Close.
	ErrClosed = errors.New("scheduler is closed")
)

// Error is the rejection of a task. Task failures are plain messages; the
// kind of failure can only be told apart by its text.
type Error struct {
	TaskID  int
	Action  protocol.Action
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
