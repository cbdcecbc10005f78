package engine

import "github.com/phrazzld/txtreader/internal/protocol"

// reporter turns fractions into integer percentage responses, emitting only
// when the percentage increases.
type reporter struct {
	taskID int
	emit   func(protocol.Response)
	last   int
}

func newReporter(taskID int, emit func(protocol.Response)) *reporter {
	return &reporter{taskID: taskID, emit: emit, last: -1}
}

func (r *reporter) report(fraction float64) {
	pct := int(fraction * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct <= r.last {
		return
	}
	r.last = pct
	r.emit(protocol.Progress(r.taskID, pct))
}
