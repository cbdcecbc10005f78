// Package linefuncs holds the per-line callbacks and matchers shipped with
// the binary. They are registered under stable names so that iterator
// configs built by the CLI or the HTTP API can be reconstructed on the
// worker.
package linefuncs

import (
	"fmt"
	"strings"

	"github.com/phrazzld/txtreader/internal/closure"
)

// Scope keys read and written by the callbacks.
const (
	KeyCount   = "count"
	KeyNeedle  = "needle"
	KeyMatch   = "match"
	KeyLimit   = "limit"
	KeyMatches = "matches"
	KeyTotal   = "total"
)

// Match reports whether line matches needle.
type Match func(line, needle string) bool

var callbacks = map[string]any{
	"countLines":     CountLines,
	"countMatches":   CountMatches,
	"collectMatches": CollectMatches,
	"contains":       Contains,
	"hasPrefix":      HasPrefix,
	"containsFold":   ContainsFold,
}

var matchers = map[string]Match{
	"contains": Contains,
	"prefix":   HasPrefix,
	"fold":     ContainsFold,
}

// Register adds every callback and matcher to reg.
func Register(reg *closure.Registry) error {
	for name, fn := range callbacks {
		if err := reg.Register(name, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding every callback and matcher.
func NewRegistry() (*closure.Registry, error) {
	reg := closure.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Matcher returns the matcher for a mode name: contains, prefix or fold.
func Matcher(mode string) (Match, bool) {
	m, ok := matchers[mode]
	return m, ok
}

// Contains reports whether needle is within line.
func Contains(line, needle string) bool {
	return strings.Contains(line, needle)
}

// HasPrefix reports whether line starts with needle.
func HasPrefix(line, needle string) bool {
	return strings.HasPrefix(line, needle)
}

// ContainsFold is Contains under Unicode case folding.
func ContainsFold(line, needle string) bool {
	return strings.Contains(strings.ToLower(line), strings.ToLower(needle))
}

// CountLines increments scope.count once per line.
func CountLines(rec *closure.Record) error {
	rec.Scope[KeyCount] = rec.Scope.Int(KeyCount) + 1
	return nil
}

// CountMatches increments scope.matches for every line matching
// scope.needle, using scope.match when present.
func CountMatches(rec *closure.Record) error {
	match, err := matcherOf(rec.Scope)
	if err != nil {
		return err
	}
	if match(rec.Decode(), rec.Scope.String(KeyNeedle)) {
		rec.Scope[KeyMatches] = rec.Scope.Int(KeyMatches) + 1
	}
	return nil
}

// CollectMatches appends {line, text} for matching lines to scope.matches,
// keeping at most scope.limit entries when limit is positive. scope.total
// counts every match.
func CollectMatches(rec *closure.Record) error {
	match, err := matcherOf(rec.Scope)
	if err != nil {
		return err
	}
	text := rec.Decode()
	if !match(text, rec.Scope.String(KeyNeedle)) {
		return nil
	}

	rec.Scope[KeyTotal] = rec.Scope.Int(KeyTotal) + 1
	found, _ := rec.Scope[KeyMatches].([]any)
	if limit := rec.Scope.Int(KeyLimit); limit > 0 && len(found) >= limit {
		return nil
	}
	rec.Scope[KeyMatches] = append(found, map[string]any{"line": rec.Index, "text": text})
	return nil
}

func matcherOf(scope closure.Scope) (func(string, string) bool, error) {
	switch fn := scope.Func(KeyMatch).(type) {
	case nil:
		return Contains, nil
	case Match:
		return fn, nil
	case func(string, string) bool:
		return fn, nil
	default:
		return nil, fmt.Errorf("scope.%s is %T, want func(line, needle string) bool", KeyMatch, fn)
	}
}
