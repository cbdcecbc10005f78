package closure

import (
	"fmt"

	"github.com/phrazzld/txtreader/internal/protocol"
)

// Reconstruct is the worker-side inverse of Marshal. It copies the scope,
// puts the registered function back at every function-map path and returns
// the callback ready to invoke.
func Reconstruct(reg *Registry, msg protocol.IteratorConfigMessage) (EachLineFunc, Scope, error) {
	scope := Scope(copyMap(msg.Scope))
	var eachLine EachLineFunc

	for _, path := range msg.FunctionMap {
		if len(path) == 0 {
			return nil, nil, fmt.Errorf("%w: empty path", ErrBadFunctionMap)
		}

		switch path[0] {
		case EachLineKey:
			if len(path) != 1 {
				return nil, nil, fmt.Errorf("%w: %s", ErrBadFunctionMap, FormatPath(path))
			}
			fn, err := resolve(reg, msg.EachLineSource)
			if err != nil {
				return nil, nil, fmt.Errorf("eachLine: %w", err)
			}
			switch f := fn.(type) {
			case EachLineFunc:
				eachLine = f
			case func(*Record) error:
				eachLine = f
			default:
				return nil, nil, fmt.Errorf("%w: got %T", ErrBadEachLine, fn)
			}

		case ScopeKey:
			if err := restore(reg, scope, path[1:]); err != nil {
				return nil, nil, fmt.Errorf("%s: %w", FormatPath(path), err)
			}

		default:
			return nil, nil, fmt.Errorf("%w: unknown root %q", ErrBadFunctionMap, path[0])
		}
	}

	if eachLine == nil {
		return nil, nil, fmt.Errorf("%w: function map has no eachLine entry", ErrBadFunctionMap)
	}
	return eachLine, scope, nil
}

func restore(reg *Registry, scope Scope, path []string) error {
	if len(path) == 0 {
		return ErrBadFunctionMap
	}
	parent := map[string]any(scope)
	for _, key := range path[:len(path)-1] {
		next, ok := parent[key].(map[string]any)
		if !ok {
			return ErrBadFunctionMap
		}
		parent = next
	}

	leaf := path[len(path)-1]
	name, ok := parent[leaf].(string)
	if !ok {
		return ErrBadFunctionMap
	}
	fn, err := resolve(reg, name)
	if err != nil {
		return err
	}
	parent[leaf] = fn
	return nil
}

func resolve(reg *Registry, name string) (any, error) {
	fn, ok := reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFunc, name)
	}
	return fn, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = copyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
