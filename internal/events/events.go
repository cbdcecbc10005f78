package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskEvent records one state transition of a task.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID is the scheduler-assigned id of the task
	TaskID int `json:"taskId"`

	// Action is the worker action the task performs
	Action string `json:"action"`

	// State is the state the task entered
	State string `json:"state"`

	// Message is the terminal message, set only for completed tasks
	Message string `json:"message,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates a TaskEvent for a task entering state.
func NewTaskEvent(taskID int, action, state string) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		Action:    action,
		State:     state,
		CreatedAt: time.Now(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a plain function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}
