package task

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/txtreader/internal/codec"
	"github.com/phrazzld/txtreader/internal/protocol"
)

// Completion is the outcome of a fulfilled task.
type Completion struct {
	// TimeTaken runs from dispatch to the terminal response.
	TimeTaken time.Duration
	Message   string
	Result    any
}

// DecodeResult decodes the generic result of c into out, using the json
// field names of out's type.
func DecodeResult(c Completion, out any) error {
	return codec.Decode(c.Result, out)
}

// Task is one unit of requested work and the caller's future for it. Every
// observer method returns the same Task so calls can be chained.
type Task struct {
	id      int
	request protocol.Request
	logger  *slog.Logger

	precondition func() error
	onComplete   func(protocol.Response)

	mu          sync.Mutex
	state       State
	startTime   time.Time
	settled     bool
	completion  Completion
	failure     *Error
	onProgress  func(float64)
	onFulfilled []func(Completion)
	onRejected  []func(string)
	done        chan struct{}
}

func newTask(req protocol.Request, logger *slog.Logger, opts ...EnqueueOption) *Task {
	t := &Task{
		id:      req.TaskID,
		request: req,
		logger:  logger,
		state:   StateInitialized,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the task id.
func (t *Task) ID() int {
	return t.id
}

// Request returns the request the task was created with.
func (t *Task) Request() protocol.Request {
	return t.request
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress registers the progress observer, replacing any earlier one. It
// receives percentages in [0,100] and is never called after settlement.
func (t *Task) Progress(fn func(percent float64)) *Task {
	t.mu.Lock()
	if !t.settled {
		t.onProgress = fn
	}
	t.mu.Unlock()
	return t
}

// Then registers a fulfillment observer. If the task is already fulfilled
// fn runs immediately on the calling goroutine. Observers run after the
// scheduler has released the task, so the next queued task may already be
// running.
func (t *Task) Then(fn func(Completion)) *Task {
	t.mu.Lock()
	if !t.settled {
		t.onFulfilled = append(t.onFulfilled, fn)
		t.mu.Unlock()
		return t
	}
	fulfilled, c := t.failure == nil, t.completion
	t.mu.Unlock()

	if fulfilled {
		t.invoke("then", func() { fn(c) })
	}
	return t
}

// Catch registers a rejection observer. If the task is already rejected fn
// runs immediately on the calling goroutine. A panic inside a Then observer
// is not delivered here.
func (t *Task) Catch(fn func(message string)) *Task {
	t.mu.Lock()
	if !t.settled {
		t.onRejected = append(t.onRejected, fn)
		t.mu.Unlock()
		return t
	}
	failure := t.failure
	t.mu.Unlock()

	if failure != nil {
		t.invoke("catch", func() { fn(failure.Message) })
	}
	return t
}

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx ends. A rejection is returned as
// a *Error. Giving up on the wait does not stop the task.
func (t *Task) Wait(ctx context.Context) (Completion, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure != nil {
		return Completion{}, t.failure
	}
	return t.completion, nil
}

func (t *Task) hooks() (func() error, func(protocol.Response)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.precondition, t.onComplete
}

// advance moves the task forward; it reports false for backwards or
// repeated transitions.
func (t *Task) advance(to State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if to.rank() <= t.state.rank() {
		return false
	}
	t.state = to
	if to == StateRunning {
		t.startTime = time.Now()
	}
	return true
}

func (t *Task) progress(percent float64) {
	t.mu.Lock()
	if t.settled || t.state != StateRunning || t.onProgress == nil {
		t.mu.Unlock()
		return
	}
	fn := t.onProgress
	t.mu.Unlock()

	t.invoke("progress", func() { fn(percent) })
}

func (t *Task) fulfill(message string, result any) bool {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return false
	}
	c := Completion{Message: message, Result: result}
	if !t.startTime.IsZero() {
		c.TimeTaken = time.Since(t.startTime)
	}
	t.completion = c
	observers := t.settleLocked()
	t.mu.Unlock()

	for _, fn := range observers.fulfilled {
		fn := fn
		t.invoke("then", func() { fn(c) })
	}
	return true
}

func (t *Task) reject(message string) bool {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return false
	}
	t.failure = &Error{TaskID: t.id, Action: t.request.Action, Message: message}
	observers := t.settleLocked()
	t.mu.Unlock()

	for _, fn := range observers.rejected {
		fn := fn
		t.invoke("catch", func() { fn(message) })
	}
	return true
}

type observerSet struct {
	fulfilled []func(Completion)
	rejected  []func(string)
}

// settleLocked marks the task completed and detaches every observer so
// none of them outlives the settlement.
func (t *Task) settleLocked() observerSet {
	t.settled = true
	t.state = StateCompleted
	observers := observerSet{fulfilled: t.onFulfilled, rejected: t.onRejected}
	t.onProgress = nil
	t.onFulfilled = nil
	t.onRejected = nil
	t.precondition = nil
	t.onComplete = nil
	close(t.done)
	return observers
}

// invoke runs an observer, logging and swallowing any panic it raises.
func (t *Task) invoke(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("task observer panicked",
				"task_id", t.id,
				"action", t.request.Action,
				"observer", kind,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
