// Package worker hosts the engine on its own goroutine and exposes it as a
// task.Peer. Requests and responses cross between the two sides only as
// codec-encoded frames, so the controller and the worker share no memory.
package worker
