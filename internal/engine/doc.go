// Package engine implements every reader action on the worker side of the
// boundary. An Engine owns the loaded file's line index and answers one
// request at a time, streaming progress responses followed by exactly one
// terminal response.
package engine
