package closure

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// EachLineFunc is invoked once per line on the worker side. Returning an
// error stops the iteration and fails the task with the error's message.
type EachLineFunc func(rec *Record) error

// IteratorConfig is what a caller hands to the reader for iterate actions.
type IteratorConfig struct {
	EachLine EachLineFunc
	Scope    map[string]any
}

// Scope is the reconstructed scope seen by an EachLineFunc. Writes made by
// the callback are returned to the caller as the task result.
type Scope map[string]any

// Get walks path through nested maps.
func (s Scope) Get(path ...string) (any, bool) {
	var cur any = map[string]any(s)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Func returns the function stored at path, or nil.
func (s Scope) Func(path ...string) any {
	v, ok := s.Get(path...)
	if !ok {
		return nil
	}
	return v
}

// Int returns the number stored at key as an int. Numbers arrive as whatever
// the codec produced (float64 for JSON, uint64 or int64 for CBOR).
func (s Scope) Int(key string) int {
	switch n := s[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// String returns the string stored at key, or "".
func (s Scope) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Record is one line handed to an EachLineFunc.
type Record struct {
	// Raw is the line without its terminator. It is only valid for the
	// duration of the call.
	Raw []byte

	// Index is the 0-based line number in the file.
	Index int

	// Progress is the fraction of the iteration completed, in [0,1].
	Progress float64

	Scope Scope
}

// Decode returns Raw as UTF-8 text, replacing invalid sequences with U+FFFD.
func (r *Record) Decode() string {
	return DecodeUTF8(r.Raw)
}

// DecodeUTF8 converts raw bytes to a string, replacing invalid sequences.
func DecodeUTF8(raw []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(out)
}

// FormatPath renders a function-map path as ["a"]["b"].
func FormatPath(path []string) string {
	var b strings.Builder
	for _, key := range path {
		b.WriteString("[")
		b.WriteString(strconv.Quote(key))
		b.WriteString("]")
	}
	return b.String()
}
