package task

import (
	"log/slog"

	"github.com/gammazero/deque"
)

// runQueue holds tasks waiting for the running slot, oldest first.
type runQueue struct {
	tasks  deque.Deque[*Task]
	logger *slog.Logger
}

func newRunQueue(logger *slog.Logger) *runQueue {
	return &runQueue{logger: logger}
}

func (q *runQueue) push(t *Task) {
	q.tasks.PushBack(t)
	q.logger.Debug("task queued",
		"task_id", t.id,
		"action", t.request.Action,
		"queue_len", q.tasks.Len())
}

func (q *runQueue) pop() (*Task, bool) {
	if q.tasks.Len() == 0 {
		return nil, false
	}
	return q.tasks.PopFront(), true
}

func (q *runQueue) ids() []int {
	ids := make([]int, q.tasks.Len())
	for i := range ids {
		ids[i] = q.tasks.At(i).id
	}
	return ids
}

// drain empties the queue and returns its former contents in order.
func (q *runQueue) drain() []*Task {
	out := make([]*Task, 0, q.tasks.Len())
	for q.tasks.Len() > 0 {
		out = append(out, q.tasks.PopFront())
	}
	return out
}
