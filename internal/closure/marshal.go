package closure

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/phrazzld/txtreader/internal/protocol"
)

// Root keys of a function-map path.
const (
	EachLineKey = "eachLine"
	ScopeKey    = "scope"
)

// DefaultMaxDepth bounds how deep Marshal follows nested maps.
const DefaultMaxDepth = 32

type options struct {
	maxDepth int
}

// Option adjusts Marshal and MarshalScope.
type Option func(*options)

// WithMaxDepth sets the nesting limit. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// Marshal converts cfg into its transmittable form. The caller's scope is
// left untouched.
func Marshal(reg *Registry, cfg IteratorConfig, opts ...Option) (protocol.IteratorConfigMessage, error) {
	if cfg.EachLine == nil {
		return protocol.IteratorConfigMessage{}, fmt.Errorf("%w: eachLine is nil", ErrNotFunc)
	}
	name, err := reg.NameOf(cfg.EachLine)
	if err != nil {
		return protocol.IteratorConfigMessage{}, fmt.Errorf("eachLine: %w", err)
	}

	functionMap := [][]string{{EachLineKey}}
	scope, err := marshalScope(reg, cfg.Scope, []string{ScopeKey}, &functionMap, opts)
	if err != nil {
		return protocol.IteratorConfigMessage{}, err
	}

	return protocol.IteratorConfigMessage{
		EachLineSource: name,
		Scope:          scope,
		FunctionMap:    functionMap,
	}, nil
}

// MarshalScope replaces the functions in scope by their names and returns
// the copy together with the paths, relative to the scope, where functions
// were found.
func MarshalScope(reg *Registry, scope map[string]any, opts ...Option) (map[string]any, [][]string, error) {
	var functionMap [][]string
	out, err := marshalScope(reg, scope, nil, &functionMap, opts)
	if err != nil {
		return nil, nil, err
	}
	return out, functionMap, nil
}

func marshalScope(reg *Registry, scope map[string]any, root []string, functionMap *[][]string, opts []Option) (map[string]any, error) {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if scope == nil {
		return map[string]any{}, nil
	}
	return walk(reg, scope, root, functionMap, o.maxDepth)
}

func walk(reg *Registry, m map[string]any, path []string, functionMap *[][]string, depth int) (map[string]any, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w at %s", ErrScopeTooDeep, FormatPath(path))
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		v := m[k]
		here := append(append([]string(nil), path...), k)

		switch tv := v.(type) {
		case map[string]any:
			nested, err := walk(reg, tv, here, functionMap, depth-1)
			if err != nil {
				return nil, err
			}
			out[k] = nested
			continue
		case Scope:
			nested, err := walk(reg, tv, here, functionMap, depth-1)
			if err != nil {
				return nil, err
			}
			out[k] = nested
			continue
		}

		if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
			name, err := reg.NameOf(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", FormatPath(here), err)
			}
			out[k] = name
			*functionMap = append(*functionMap, here)
			continue
		}

		if v != nil {
			if err := rejectNestedFuncs(reflect.ValueOf(v), FormatPath(here), depth-1); err != nil {
				return nil, err
			}
		}
		out[k] = v
	}
	return out, nil
}

// rejectNestedFuncs fails if a function is reachable from v through slices,
// arrays, maps, pointers or interfaces. where locates v in the error.
func rejectNestedFuncs(v reflect.Value, where string, depth int) error {
	if depth <= 0 {
		return fmt.Errorf("%w at %s", ErrScopeTooDeep, where)
	}
	switch v.Kind() {
	case reflect.Func:
		if v.IsNil() {
			return nil
		}
		return fmt.Errorf("%s: %w", where, ErrNestedFunc)
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return rejectNestedFuncs(v.Elem(), where, depth-1)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := rejectNestedFuncs(v.Index(i), fmt.Sprintf("%s[%d]", where, i), depth-1); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := rejectNestedFuncs(iter.Value(), fmt.Sprintf("%s[%v]", where, iter.Key()), depth-1); err != nil {
				return err
			}
		}
	}
	return nil
}
