package protocol

import (
	"fmt"
	"math"
)

// MsgNotLoaded is the failure message for line actions issued before any
// load-file has completed successfully.
const MsgNotLoaded = "TxtReader has not loaded a file yet."

// Request asks the worker to perform one action. TaskID is assigned by the
// controller and never changes afterwards.
type Request struct {
	Action Action `json:"action"`
	Data   any    `json:"data"`
	TaskID int    `json:"taskId"`
}

// Response is emitted by the worker for a request. Done=false marks a
// progress update whose Result is a percentage; Done=true is the single
// terminal response for the task.
type Response struct {
	TaskID  int    `json:"taskId"`
	Success bool   `json:"success"`
	Done    bool   `json:"done"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

// Progress builds a non-terminal response carrying percent.
func Progress(taskID int, percent int) Response {
	return Response{TaskID: taskID, Success: true, Done: false, Result: percent}
}

// Succeeded builds a successful terminal response.
func Succeeded(taskID int, message string, result any) Response {
	return Response{TaskID: taskID, Success: true, Done: true, Message: message, Result: result}
}

// Failed builds a failed terminal response.
func Failed(taskID int, message string) Response {
	return Response{TaskID: taskID, Success: false, Done: true, Message: message}
}

// ProgressValue extracts the percentage carried by a progress response.
// Any numeric type produced by a codec is accepted; the value must be finite
// and within [0,100].
func ProgressValue(result any) (float64, error) {
	var v float64
	switch n := result.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int8:
		v = float64(n)
	case int16:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint:
		v = float64(n)
	case uint8:
		v = float64(n)
	case uint16:
		v = float64(n)
	case uint32:
		v = float64(n)
	case uint64:
		v = float64(n)
	default:
		return 0, fmt.Errorf("progress result has type %T, want a number", result)
	}
	if math.IsNaN(v) || v < 0 || v > 100 {
		return 0, fmt.Errorf("progress result %v outside [0,100]", v)
	}
	return v, nil
}
