package closure

import "errors"

// Errors returned by the registry and the marshaller.
var (
	// ErrNotFunc is returned when a non-function is registered.
	ErrNotFunc = errors.New("value is not a function")

	// ErrAnonymousFunc is returned for function literals and method values,
	// which may carry captured state that cannot be transmitted.
	ErrAnonymousFunc = errors.New("anonymous functions and method values cannot cross the worker boundary")

	// ErrDuplicateFunc is returned when a name or a function is registered twice.
	ErrDuplicateFunc = errors.New("function already registered")

	// ErrUnregisteredFunc is returned when the scope graph holds a function
	// that was never registered.
	ErrUnregisteredFunc = errors.New("function is not registered")

	// ErrNestedFunc is returned for a function held inside a slice, an array
	// or a map that is not a scope. Only scope entries can carry functions.
	ErrNestedFunc = errors.New("functions inside slices or non-scope maps cannot cross the worker boundary")

	// ErrUnknownFunc is returned on reconstruction when a transmitted name has
	// no registered function.
	ErrUnknownFunc = errors.New("no function registered under name")

	// ErrScopeTooDeep is returned when the scope graph nests deeper than the
	// configured limit, which is also how a cyclic graph shows up.
	ErrScopeTooDeep = errors.New("scope nesting exceeds maximum depth")

	// ErrBadFunctionMap is returned when a function-map path does not lead to
	// a function name in the transmitted message.
	ErrBadFunctionMap = errors.New("function map path does not resolve")

	// ErrBadEachLine is returned when the eachLine entry has the wrong type.
	ErrBadEachLine = errors.New("eachLine must be a func(*closure.Record) error")
)
