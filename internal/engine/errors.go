package engine

import (
	"errors"

	"github.com/phrazzld/txtreader/internal/protocol"
)

// Engine errors. Their text becomes the failure message of the task.
var (
	ErrNotLoaded     = errors.New(protocol.MsgNotLoaded)
	ErrUnknownAction = errors.New("unknown action")
	ErrOutOfRange    = errors.New("line out of range")
	ErrEachLine      = errors.New("eachLine failed")
	ErrShuttingDown  = errors.New("worker is shutting down")
)

// errStop ends a line scan early without an error.
var errStop = errors.New("stop scanning")
