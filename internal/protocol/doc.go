// Package protocol defines the messages exchanged between the controller and
// the isolated worker context.
//
// Every value here is plain data: strings, numbers, booleans, slices and
// string-keyed maps. Nothing in this package may hold a function or a pointer
// into controller memory, because messages are encoded to bytes before they
// cross the boundary.
package protocol
