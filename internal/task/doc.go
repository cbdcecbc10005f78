// Package task schedules actions on the isolated worker and hands callers a
// future for each one.
//
// The Scheduler is single-flight: exactly one task runs on the worker at a
// time, later tasks wait in a FIFO queue, and every response coming back is
// matched against the running task's id. A Task is the caller's handle on
// the eventual outcome and supports progress, fulfillment and rejection
// observers in addition to blocking waits.
package task
