// Package api exposes the reader over HTTP. Handlers translate requests into
// reader actions, wait for the task with the request's context and map task
// failures to status codes.
package api
