package task

import (
	"time"

	"github.com/phrazzld/txtreader/internal/protocol"
)

// TaskRecord is the history entry kept for every task. It holds no reference
// to the Task, so settled tasks can be collected.
type TaskRecord struct {
	ID         int             `json:"id"`
	Action     protocol.Action `json:"action"`
	State      State           `json:"state"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
}

// history is a bounded, id-ordered list of task records.
type history struct {
	records []TaskRecord
	base    int // id of records[0]
	limit   int
}

func newHistory(limit int) *history {
	return &history{limit: limit, base: 1}
}

func (h *history) add(rec TaskRecord) {
	if len(h.records) == 0 {
		h.base = rec.ID
	}
	h.records = append(h.records, rec)
	if h.limit > 0 && len(h.records) > h.limit {
		drop := len(h.records) - h.limit
		h.records = append([]TaskRecord(nil), h.records[drop:]...)
		h.base += drop
	}
}

func (h *history) update(id int, fn func(*TaskRecord)) {
	i := id - h.base
	if i < 0 || i >= len(h.records) {
		return
	}
	fn(&h.records[i])
}

func (h *history) snapshot() []TaskRecord {
	return append([]TaskRecord(nil), h.records...)
}
