package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/engine"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/phrazzld/txtreader/internal/task"
)

// MapErrorToStatusCode maps a task failure to an HTTP status code. Task
// failures are plain messages, so the mapping is by message text for
// failures reported by the worker.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	var taskErr *task.Error
	if !errors.As(err, &taskErr) {
		return http.StatusInternalServerError
	}

	msg := taskErr.Message
	switch {
	case msg == protocol.MsgNotLoaded:
		return http.StatusConflict
	case strings.Contains(msg, protocol.ErrInvalidPayload.Error()),
		strings.Contains(msg, engine.ErrOutOfRange.Error()),
		strings.Contains(msg, closure.ErrUnregisteredFunc.Error()),
		strings.Contains(msg, closure.ErrAnonymousFunc.Error()),
		strings.Contains(msg, closure.ErrNestedFunc.Error()),
		strings.Contains(msg, closure.ErrScopeTooDeep.Error()):
		return http.StatusBadRequest
	case strings.HasPrefix(msg, "failed to open"):
		return http.StatusNotFound
	case strings.HasPrefix(msg, task.ErrHalted.Error()),
		strings.HasPrefix(msg, task.ErrClosed.Error()),
		strings.Contains(msg, "failed to send request"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

// GetSafeErrorMessage returns the message shown to clients. Worker failure
// messages describe the request, not the server, and are passed through.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out"
	case errors.Is(err, context.Canceled):
		return "The request was cancelled"
	}
	var taskErr *task.Error
	if errors.As(err, &taskErr) {
		return taskErr.Message
	}
	return "An unexpected error occurred"
}
