package txtreader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/codec"
	"github.com/phrazzld/txtreader/internal/events"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/phrazzld/txtreader/internal/task"
	"github.com/phrazzld/txtreader/internal/worker"
	"github.com/spf13/afero"
)

// Options configures a Reader built by Open.
type Options struct {
	// Codec names the wire codec between controller and worker.
	Codec string

	Worker    worker.Config
	Scheduler task.SchedulerConfig

	// MaxScopeDepth bounds how deep iterator scopes may nest.
	MaxScopeDepth int

	// Emitter, when set, receives every task state transition.
	Emitter events.EventEmitter
}

// DefaultOptions returns Options with reasonable defaults
func DefaultOptions() Options {
	return Options{
		Codec:         "json",
		Worker:        worker.DefaultConfig(),
		Scheduler:     task.DefaultSchedulerConfig(),
		MaxScopeDepth: closure.DefaultMaxDepth,
	}
}

// Reader issues reader actions to a single worker, one at a time.
type Reader struct {
	scheduler *task.Scheduler
	registry  *closure.Registry
	maxDepth  int
	peer      io.Closer
	conn      *worker.Conn
	logger    *slog.Logger

	mu        sync.RWMutex
	loaded    bool
	path      string
	lineCount int
}

// Open starts a worker over fs and returns a Reader driving it. Callbacks
// passed to the iterate methods must be registered in registry.
func Open(fs afero.Fs, registry *closure.Registry, opts Options, logger *slog.Logger) (*Reader, error) {
	codecs, err := codec.NewRegistry()
	if err != nil {
		return nil, err
	}
	c, err := codecs.Get(opts.Codec)
	if err != nil {
		return nil, err
	}

	conn := worker.Start(fs, registry, c, opts.Worker, logger)
	scheduler := task.NewScheduler(conn, opts.Scheduler, logger)
	if opts.Emitter != nil {
		scheduler.SetEmitter(opts.Emitter)
	}

	r := New(scheduler, registry, opts.MaxScopeDepth, logger)
	r.peer = conn
	r.conn = conn
	return r, nil
}

// WorkerInfo describes the worker started by Open.
type WorkerInfo struct {
	ID    string       `json:"id"`
	Codec string       `json:"codec"`
	Stats worker.Stats `json:"stats"`
}

// Worker reports the worker started by Open. It returns false for a Reader
// built with New, whose peer belongs to the caller.
func (r *Reader) Worker() (WorkerInfo, bool) {
	if r.conn == nil {
		return WorkerInfo{}, false
	}
	return WorkerInfo{
		ID:    r.conn.ID().String(),
		Codec: r.conn.Codec(),
		Stats: r.conn.Stats(),
	}, true
}

// New wraps an existing scheduler. The caller keeps ownership of the
// scheduler's peer.
func New(scheduler *task.Scheduler, registry *closure.Registry, maxScopeDepth int, logger *slog.Logger) *Reader {
	if maxScopeDepth <= 0 {
		maxScopeDepth = closure.DefaultMaxDepth
	}
	return &Reader{
		scheduler: scheduler,
		registry:  registry,
		maxDepth:  maxScopeDepth,
		logger:    logger.With("component", "txtreader"),
		lineCount: -1,
	}
}

// Scheduler exposes the underlying scheduler for inspection.
func (r *Reader) Scheduler() *task.Scheduler {
	return r.scheduler
}

// Loaded reports whether the last load-file succeeded.
func (r *Reader) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Path returns the path of the loaded file, or "".
func (r *Reader) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// LineCount returns the number of lines of the loaded file, or -1.
func (r *Reader) LineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lineCount
}

// Close rejects every outstanding task and stops the worker started by Open.
func (r *Reader) Close() error {
	err := r.scheduler.Close()
	if r.peer != nil {
		err = errors.Join(err, r.peer.Close())
	}
	return err
}

// LoadFile indexes path on the worker and makes it the file every line
// action reads from. The task's result decodes into protocol.LoadFileResult.
func (r *Reader) LoadFile(path string) *task.Task {
	payload := protocol.LoadFileData{Path: path}
	return r.enqueue(protocol.ActionLoadFile, payload, protocol.ValidatePayload(payload),
		task.WithCompletionHook(r.trackLoad(path)))
}

// SniffLines returns the first count lines of path without loading it.
func (r *Reader) SniffLines(path string, count int) *task.Task {
	payload := protocol.SniffLinesData{Path: path, Count: count}
	return r.enqueue(protocol.ActionSniffLines, payload, protocol.ValidatePayload(payload))
}

// SetChunkSize changes how many bytes the worker reads per chunk.
func (r *Reader) SetChunkSize(size int) *task.Task {
	payload := protocol.ChunkSizeData{ChunkSize: size}
	return r.enqueue(protocol.ActionSetChunkSize, payload, protocol.ValidatePayload(payload))
}

// EnableDiagnostics turns per-action timing logs on the worker on or off.
func (r *Reader) EnableDiagnostics(enabled bool) *task.Task {
	return r.enqueue(protocol.ActionEnableDiagnostics, protocol.DiagnosticsData{Enabled: enabled}, nil)
}

// GetLines returns count lines starting at start.
func (r *Reader) GetLines(start, count int) *task.Task {
	payload := protocol.LineRange{Start: start, Count: count}
	return r.enqueue(protocol.ActionGetLines, payload, protocol.ValidatePayload(payload))
}

// GetLinesByRanges returns the lines of every range, one slice per range.
func (r *Reader) GetLinesByRanges(ranges []protocol.LineRange) *task.Task {
	payload := protocol.GetLinesByRangesData{Ranges: ranges}
	return r.enqueue(protocol.ActionGetLinesByRanges, payload, protocol.ValidatePayload(payload))
}

// GetSporadicLines returns the given lines, in the order asked for.
func (r *Reader) GetSporadicLines(lines []int) *task.Task {
	payload := protocol.SporadicLinesData{Lines: lines}
	return r.enqueue(protocol.ActionGetSporadicLines, payload, protocol.ValidatePayload(payload))
}

// IterateLines calls cfg.EachLine on the worker for every line of the file.
// The result is the scope as the callback left it.
func (r *Reader) IterateLines(cfg closure.IteratorConfig) *task.Task {
	return r.IterateLineRange(cfg, 0, protocol.ToEnd)
}

// IterateLineRange is IterateLines restricted to count lines from start.
// A count of protocol.ToEnd runs to the last line.
func (r *Reader) IterateLineRange(cfg closure.IteratorConfig, start, count int) *task.Task {
	msg, err := closure.Marshal(r.registry, cfg, closure.WithMaxDepth(r.maxDepth))
	payload := protocol.IterateLinesData{Config: msg, Start: start, Count: count}
	if err == nil {
		err = protocol.ValidatePayload(payload)
	}
	return r.enqueue(protocol.ActionIterateLines, payload, err)
}

// IterateSporadicLines calls cfg.EachLine for each of the given lines.
func (r *Reader) IterateSporadicLines(cfg closure.IteratorConfig, lines []int) *task.Task {
	msg, err := closure.Marshal(r.registry, cfg, closure.WithMaxDepth(r.maxDepth))
	payload := protocol.IterateSporadicLinesData{Config: msg, Lines: lines}
	if err == nil {
		err = protocol.ValidatePayload(payload)
	}
	return r.enqueue(protocol.ActionIterateSporadicLines, payload, err)
}

// enqueue submits action. A non-nil invalid error, or a missing file for
// line actions, rejects the task without contacting the worker.
func (r *Reader) enqueue(action protocol.Action, payload any, invalid error, opts ...task.EnqueueOption) *task.Task {
	if invalid != nil {
		r.logger.Debug("rejecting invalid request", "action", action, "error", invalid)
	}
	check := func() error {
		if invalid != nil {
			return invalid
		}
		if action.RequiresLoadedFile() && !r.Loaded() {
			return errors.New(protocol.MsgNotLoaded)
		}
		return nil
	}
	opts = append(opts, task.WithPrecondition(check))
	return r.scheduler.Enqueue(action, payload, opts...)
}

func (r *Reader) trackLoad(path string) func(protocol.Response) {
	return func(resp protocol.Response) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if !resp.Success {
			r.loaded, r.path, r.lineCount = false, "", -1
			return
		}
		var result protocol.LoadFileResult
		if err := codec.Decode(resp.Result, &result); err != nil {
			r.logger.Error("failed to decode load result", "path", path, "error", err)
			r.loaded, r.path, r.lineCount = false, "", -1
			return
		}
		r.loaded, r.path, r.lineCount = true, path, result.LineCount
		r.logger.Info("file loaded", "path", path, "line_count", result.LineCount, "size", result.Size)
	}
}

// Await waits for t and decodes its result into a T.
func Await[T any](ctx context.Context, t *task.Task) (T, error) {
	var out T
	c, err := t.Wait(ctx)
	if err != nil {
		return out, err
	}
	if err := task.DecodeResult(c, &out); err != nil {
		return out, fmt.Errorf("task %d: %w", t.ID(), err)
	}
	return out, nil
}
