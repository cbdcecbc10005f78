package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/codec"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/spf13/afero"
)

// DefaultChunkSize is the number of bytes read from the file per chunk.
const DefaultChunkSize = 1 << 20

// Config holds the engine's initial settings. Both can be changed later by
// set-chunk-size and enable-diagnostics requests.
type Config struct {
	ChunkSize   int
	Diagnostics bool
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize}
}

// Emit receives every response the engine produces for a request.
type Emit func(protocol.Response)

// Engine executes requests. It is not safe for concurrent use; the worker
// connection feeds it one request at a time.
type Engine struct {
	fs       afero.Fs
	registry *closure.Registry
	logger   *slog.Logger

	chunkSize   int
	diagnostics bool
	file        *loadedFile
}

type loadedFile struct {
	path  string
	size  int64
	lines []span
}

type handlerFunc func(ctx context.Context, taskID int, data any, rep *reporter) (string, any, error)

// New creates an engine reading from fs and resolving callbacks in registry.
func New(fs afero.Fs, registry *closure.Registry, config Config, logger *slog.Logger) *Engine {
	if config.ChunkSize <= 0 {
		logger.Warn("invalid chunk size specified, using default",
			"specified_size", config.ChunkSize,
			"default_size", DefaultChunkSize)
		config.ChunkSize = DefaultChunkSize
	}
	return &Engine{
		fs:          fs,
		registry:    registry,
		logger:      logger.With("component", "engine"),
		chunkSize:   config.ChunkSize,
		diagnostics: config.Diagnostics,
	}
}

// Handle runs req and reports through emit. It always emits exactly one
// terminal response carrying req.TaskID, even when the handler panics.
func (e *Engine) Handle(ctx context.Context, req protocol.Request, emit Emit) {
	start := time.Now()
	rep := newReporter(req.TaskID, emit)

	message, result, err := e.run(ctx, req, rep)

	if e.diagnostics {
		e.logger.Info("action finished",
			"task_id", req.TaskID,
			"action", req.Action,
			"success", err == nil,
			"duration", time.Since(start))
	}

	if err != nil {
		e.logger.Debug("action failed", "task_id", req.TaskID, "action", req.Action, "error", err)
		emit(protocol.Failed(req.TaskID, err.Error()))
		return
	}
	emit(protocol.Succeeded(req.TaskID, message, result))
}

func (e *Engine) run(ctx context.Context, req protocol.Request, rep *reporter) (message string, result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while handling request",
				"task_id", req.TaskID,
				"action", req.Action,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%s panicked: %v", req.Action, r)
		}
	}()

	handler, ok := e.handlers()[req.Action]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if req.Action.RequiresLoadedFile() && e.file == nil {
		return "", nil, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return "", nil, ErrShuttingDown
	}
	return handler(ctx, req.TaskID, req.Data, rep)
}

func (e *Engine) handlers() map[protocol.Action]handlerFunc {
	return map[protocol.Action]handlerFunc{
		protocol.ActionLoadFile:             e.loadFile,
		protocol.ActionSniffLines:           e.sniffLines,
		protocol.ActionSetChunkSize:         e.setChunkSize,
		protocol.ActionEnableDiagnostics:    e.enableDiagnostics,
		protocol.ActionGetLines:             e.getLines,
		protocol.ActionGetLinesByRanges:     e.getLinesByRanges,
		protocol.ActionGetSporadicLines:     e.getSporadicLines,
		protocol.ActionIterateLines:         e.iterateLines,
		protocol.ActionIterateSporadicLines: e.iterateSporadicLines,
	}
}

// LineCount returns the number of lines of the loaded file, or -1.
func (e *Engine) LineCount() int {
	if e.file == nil {
		return -1
	}
	return len(e.file.lines)
}

// ChunkSize returns the current chunk size in bytes.
func (e *Engine) ChunkSize() int {
	return e.chunkSize
}

// decodePayload converts request data into a typed payload and validates it.
func decodePayload(data any, out any) error {
	if err := codec.Decode(data, out); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrInvalidPayload, err)
	}
	return protocol.ValidatePayload(out)
}

func (e *Engine) setChunkSize(_ context.Context, _ int, data any, _ *reporter) (string, any, error) {
	var p protocol.ChunkSizeData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}
	e.chunkSize = p.ChunkSize
	return fmt.Sprintf("chunk size set to %d bytes", p.ChunkSize), p, nil
}

func (e *Engine) enableDiagnostics(_ context.Context, _ int, data any, _ *reporter) (string, any, error) {
	var p protocol.DiagnosticsData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}
	e.diagnostics = p.Enabled
	state := "disabled"
	if p.Enabled {
		state = "enabled"
	}
	return "diagnostics " + state, p, nil
}
