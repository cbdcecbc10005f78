// Package events carries task lifecycle notifications from the scheduler to
// whoever wants to observe them.
//
// The scheduler emits a TaskEvent each time a task changes state. Handlers
// register with an EventEmitter and receive every event synchronously, so
// they should be quick and must not call back into the scheduler.
//
// The primary components are:
// - TaskEvent: a single state transition of a single task
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
package events
