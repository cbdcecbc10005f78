package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/txtreader/internal/events"
	"github.com/phrazzld/txtreader/internal/protocol"
)

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	// HistoryLimit caps how many task records History keeps. Zero keeps all.
	HistoryLimit int
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		HistoryLimit: 1000,
	}
}

// Scheduler assigns task ids, queues tasks and runs them one at a time on
// the worker. All responses are handled on a single goroutine in arrival
// order.
type Scheduler struct {
	peer   Peer
	config SchedulerConfig
	logger *slog.Logger

	mu       sync.Mutex
	lastID   int
	running  *Task
	pending  *runQueue
	history  *history
	halted   error
	peerGone bool
	emitter  events.EventEmitter
	fatal    func(error)

	// deferred carries synthetic terminal responses for tasks rejected
	// locally, so they settle through the same path as worker responses.
	deferred chan protocol.Response

	stop      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// NewScheduler creates a scheduler that owns peer and starts its receive
// loop.
func NewScheduler(peer Peer, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if config.HistoryLimit < 0 {
		logger.Warn("invalid history limit specified, keeping all records",
			"specified_limit", config.HistoryLimit)
		config.HistoryLimit = 0
	}

	logger = logger.With("component", "scheduler")
	s := &Scheduler{
		peer:     peer,
		config:   config,
		logger:   logger,
		pending:  newRunQueue(logger),
		history:  newHistory(config.HistoryLimit),
		deferred: make(chan protocol.Response, 1),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	s.fatal = func(err error) {
		panic(err)
	}

	go s.loop()
	return s
}

// SetFatalHandler replaces the function called when the scheduler halts on
// a protocol violation. The default panics.
func (s *Scheduler) SetFatalHandler(handler func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fatal = handler
}

// SetEmitter makes the scheduler publish a TaskEvent for every state
// transition. Events are emitted while the scheduler holds its lock, so
// handlers must not call back into the scheduler.
func (s *Scheduler) SetEmitter(emitter events.EventEmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitter = emitter
}

// Enqueue creates a task for action and either dispatches it or queues it
// behind the running task. It never blocks on the worker and never settles
// the task before returning it to the caller's observers: every outcome,
// including local rejections, arrives asynchronously.
func (s *Scheduler) Enqueue(action protocol.Action, data any, opts ...EnqueueOption) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	req := protocol.Request{Action: action, Data: data, TaskID: s.lastID}
	t := newTask(req, s.logger, opts...)
	s.history.add(TaskRecord{
		ID:         t.id,
		Action:     action,
		State:      StateInitialized,
		EnqueuedAt: time.Now(),
	})

	if s.halted != nil {
		reason := s.halted.Error()
		s.logger.Debug("rejecting task on halted scheduler", "task_id", t.id, "action", action)
		s.finishLocked(t, false, reason)
		go t.reject(reason)
		return t
	}

	if s.running == nil {
		s.dispatchLocked(t)
	} else {
		s.transitionLocked(t, StateQueued)
		s.pending.push(t)
	}
	return t
}

// Running returns the id of the running task, if any.
func (s *Scheduler) Running() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		return 0, false
	}
	return s.running.id, true
}

// Pending returns the ids of queued tasks in dispatch order.
func (s *Scheduler) Pending() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.ids()
}

// History returns a copy of the task records, oldest first.
func (s *Scheduler) History() []TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.snapshot()
}

// Err returns the error the scheduler halted with, or nil.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Close stops the receive loop and rejects every outstanding task. It does
// not close the peer, which belongs to the caller.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.loopDone

		s.mu.Lock()
		if s.halted == nil {
			s.halted = ErrClosed
		}
		reason := s.halted.Error()
		victims := s.abandonLocked(reason)
		s.mu.Unlock()

		for _, t := range victims {
			t.reject(reason)
		}
		s.logger.Debug("scheduler closed", "rejected", len(victims))
	})
	return nil
}

// dispatchLocked marks t running and either sends its request or rejects it
// locally. Exactly one of the two happens.
func (s *Scheduler) dispatchLocked(t *Task) {
	s.running = t
	s.transitionLocked(t, StateRunning)

	precondition, _ := t.hooks()
	if precondition != nil {
		if err := precondition(); err != nil {
			s.rejectLocally(t, err.Error())
			return
		}
	}
	if s.peerGone {
		s.rejectLocally(t, ErrPeerClosed.Error())
		return
	}
	if err := s.peer.Send(t.request); err != nil {
		s.logger.Error("failed to send request", "task_id", t.id, "action", t.request.Action, "error", err)
		s.rejectLocally(t, fmt.Sprintf("failed to send request: %v", err))
		return
	}
	s.logger.Debug("request sent", "task_id", t.id, "action", t.request.Action)
}

func (s *Scheduler) rejectLocally(t *Task, message string) {
	s.logger.Debug("task rejected locally", "task_id", t.id, "action", t.request.Action, "message", message)
	resp := protocol.Failed(t.id, message)
	select {
	case s.deferred <- resp:
	default:
		go func() { s.deferred <- resp }()
	}
}

func (s *Scheduler) loop() {
	defer close(s.loopDone)

	responses := s.peer.Receive()
	for {
		select {
		case <-s.stop:
			return
		case resp := <-s.deferred:
			s.handle(resp)
		case resp, ok := <-responses:
			if !ok {
				responses = nil
				s.peerClosed()
				continue
			}
			s.handle(resp)
		}
	}
}

func (s *Scheduler) peerClosed() {
	s.mu.Lock()
	s.peerGone = true
	running := s.running
	s.mu.Unlock()

	s.logger.Warn("worker connection closed")
	if running != nil {
		s.halt(fmt.Errorf("%w while task %d was running", ErrPeerClosed, running.id))
	}
}

// handle processes one response. It only ever runs on the loop goroutine.
func (s *Scheduler) handle(resp protocol.Response) {
	s.mu.Lock()
	if s.halted != nil {
		s.mu.Unlock()
		s.logger.Warn("dropping response received after halt", "task_id", resp.TaskID)
		return
	}
	t := s.running
	s.mu.Unlock()

	if t == nil {
		s.halt(fmt.Errorf("%w: response for task %d while no task is running", ErrProtocol, resp.TaskID))
		return
	}
	if resp.TaskID != t.id {
		s.halt(fmt.Errorf("%w: response for task %d while task %d is running", ErrProtocol, resp.TaskID, t.id))
		return
	}

	if !resp.Done {
		percent, err := protocol.ProgressValue(resp.Result)
		if err != nil {
			s.halt(fmt.Errorf("%w: unknown message for task %d: %v", ErrProtocol, t.id, err))
			return
		}
		t.progress(percent)
		return
	}

	if _, hook := t.hooks(); hook != nil {
		t.invoke("completion hook", func() { hook(resp) })
	}

	// The slot is released before observers run, so they see the
	// scheduler without the settled task.
	s.mu.Lock()
	if s.running == t {
		s.running = nil
		s.finishLocked(t, resp.Success, resp.Message)
		s.logger.Debug("task completed",
			"task_id", t.id,
			"action", t.request.Action,
			"success", resp.Success)

		if next, ok := s.pending.pop(); ok {
			s.dispatchLocked(next)
		}
	}
	s.mu.Unlock()

	if resp.Success {
		t.fulfill(resp.Message, resp.Result)
	} else {
		t.reject(resp.Message)
	}
}

// halt stops all further processing after a fatal error. Outstanding tasks
// are rejected so no waiter hangs, then the fatal handler runs.
func (s *Scheduler) halt(cause error) {
	s.mu.Lock()
	if s.halted != nil {
		s.mu.Unlock()
		return
	}
	s.halted = fmt.Errorf("%w: %w", ErrHalted, cause)
	reason := s.halted.Error()
	victims := s.abandonLocked(reason)
	fatal := s.fatal
	s.mu.Unlock()

	s.logger.Error("scheduler halted", "error", cause, "rejected", len(victims))
	for _, t := range victims {
		t.reject(reason)
	}
	fatal(cause)
}

// abandonLocked empties the running slot and the queue, recording every
// removed task as failed with reason.
func (s *Scheduler) abandonLocked(reason string) []*Task {
	var victims []*Task
	if s.running != nil {
		victims = append(victims, s.running)
		s.running = nil
	}
	victims = append(victims, s.pending.drain()...)
	for _, t := range victims {
		s.finishLocked(t, false, reason)
	}
	return victims
}

func (s *Scheduler) transitionLocked(t *Task, to State) {
	if !t.advance(to) {
		return
	}
	now := time.Now()
	s.history.update(t.id, func(rec *TaskRecord) {
		rec.State = to
		if to == StateRunning {
			rec.StartedAt = now
		}
	})
	s.emitLocked(events.NewTaskEvent(t.id, t.request.Action.String(), to.String()))
}

func (s *Scheduler) finishLocked(t *Task, success bool, message string) {
	now := time.Now()
	s.history.update(t.id, func(rec *TaskRecord) {
		rec.State = StateCompleted
		rec.FinishedAt = now
		rec.Success = success
		rec.Message = message
	})
	event := events.NewTaskEvent(t.id, t.request.Action.String(), StateCompleted.String())
	event.Message = message
	s.emitLocked(event)
}

func (s *Scheduler) emitLocked(event *events.TaskEvent) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitEvent(context.Background(), event); err != nil {
		s.logger.Warn("failed to emit task event", "task_id", event.TaskID, "state", event.State, "error", err)
	}
}
