package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/codec"
	"github.com/phrazzld/txtreader/internal/engine"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/spf13/afero"
)

var (
	// ErrInboxFull is returned by Send when the worker's inbox has no room.
	ErrInboxFull = errors.New("worker inbox is full")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("worker connection is closed")
)

// Config holds configuration for a worker connection
type Config struct {
	// InboxSize is the number of encoded requests that may wait for the
	// worker.
	InboxSize int

	// Engine is the initial engine configuration.
	Engine engine.Config
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		InboxSize: 16,
		Engine:    engine.DefaultConfig(),
	}
}

// Stats counts the frames that crossed the connection.
type Stats struct {
	RequestsSent      int64 `json:"requestsSent"`
	ResponsesReceived int64 `json:"responsesReceived"`
}

// Conn is the controller's end of a worker. It implements task.Peer.
type Conn struct {
	id     uuid.UUID
	codec  codec.Codec
	logger *slog.Logger

	inbox     chan []byte
	outbox    chan []byte
	responses chan protocol.Response

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	sent     atomic.Int64
	received atomic.Int64
}

// Start launches a worker whose engine reads from fs and resolves callbacks
// in registry. Frames are encoded with c.
func Start(fs afero.Fs, registry *closure.Registry, c codec.Codec, config Config, logger *slog.Logger) *Conn {
	if config.InboxSize <= 0 {
		logger.Warn("invalid inbox size specified, using default",
			"specified_size", config.InboxSize,
			"default_size", DefaultConfig().InboxSize)
		config.InboxSize = DefaultConfig().InboxSize
	}

	id := uuid.New()
	logger = logger.With("component", "worker", "worker_id", id)
	ctx, cancel := context.WithCancel(context.Background())

	conn := &Conn{
		id:        id,
		codec:     c,
		logger:    logger,
		inbox:     make(chan []byte, config.InboxSize),
		outbox:    make(chan []byte, config.InboxSize),
		responses: make(chan protocol.Response, config.InboxSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	eng := engine.New(fs, registry, config.Engine, logger)
	conn.wg.Add(2)
	go conn.serve(eng)
	go conn.pump()

	logger.Info("worker started", "codec", c.Name(), "inbox_size", config.InboxSize)
	return conn
}

// ID returns the connection's unique id.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Codec returns the name of the codec used on the wire.
func (c *Conn) Codec() string {
	return c.codec.Name()
}

// Stats returns the frame counters.
func (c *Conn) Stats() Stats {
	return Stats{RequestsSent: c.sent.Load(), ResponsesReceived: c.received.Load()}
}

// Send encodes req and hands it to the worker without waiting.
func (c *Conn) Send(req protocol.Request) error {
	frame, err := c.codec.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.inbox <- frame:
		c.sent.Add(1)
		return nil
	default:
		return ErrInboxFull
	}
}

// Receive returns the decoded responses of the worker. The channel is
// closed by Close.
func (c *Conn) Receive() <-chan protocol.Response {
	return c.responses
}

// Close stops the worker. A request being handled finishes with a failure
// or is abandoned; queued requests are dropped.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.logger.Info("worker stopped",
		"requests_sent", c.sent.Load(),
		"responses_received", c.received.Load())
	return nil
}

// serve is the worker side: it only ever sees encoded frames.
func (c *Conn) serve(eng *engine.Engine) {
	defer c.wg.Done()

	emit := func(resp protocol.Response) {
		frame, err := c.codec.Marshal(resp)
		if err != nil {
			c.logger.Error("failed to encode response", "task_id", resp.TaskID, "error", err)
			frame, err = c.codec.Marshal(protocol.Failed(resp.TaskID, fmt.Sprintf("failed to encode response: %v", err)))
			if err != nil {
				return
			}
		}
		select {
		case c.outbox <- frame:
		case <-c.ctx.Done():
		}
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.inbox:
			var req protocol.Request
			if err := c.codec.Unmarshal(frame, &req); err != nil {
				c.logger.Error("failed to decode request", "error", err)
				emit(protocol.Failed(0, fmt.Sprintf("malformed request: %v", err)))
				continue
			}
			eng.Handle(c.ctx, req, emit)
		}
	}
}

// pump is the controller side: it decodes response frames for Receive.
func (c *Conn) pump() {
	defer c.wg.Done()
	defer close(c.responses)

	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.outbox:
			var resp protocol.Response
			if err := c.codec.Unmarshal(frame, &resp); err != nil {
				c.logger.Error("failed to decode response", "error", err)
				continue
			}
			c.received.Add(1)
			select {
			case c.responses <- resp:
			case <-c.ctx.Done():
				return
			}
		}
	}
}
