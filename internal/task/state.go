package task

// State is the lifecycle position of a task.
type State string

// Task states. A task moves forward through them only; Queued is skipped
// when the task is dispatched immediately.
const (
	StateInitialized State = "initialized"
	StateQueued      State = "queued"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
)

func (s State) rank() int {
	switch s {
	case StateInitialized:
		return 0
	case StateQueued:
		return 1
	case StateRunning:
		return 2
	case StateCompleted:
		return 3
	default:
		return -1
	}
}

func (s State) String() string {
	return string(s)
}
