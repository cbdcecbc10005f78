package closure

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"sync"
)

// anonymous matches the runtime names the compiler gives to function
// literals (pkg.Outer.func1, pkg.init.func2.1) and method values (-fm).
var anonymous = regexp.MustCompile(`(\.func\d+(\.\d+)*|-fm)$`)

// Registry holds the functions that may be referenced from a marshalled
// scope. Register everything at start-up, before the first Marshal.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]any
	byPC   map[uintptr]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]any),
		byPC:   make(map[uintptr]string),
	}
}

// Register makes fn available under name on both sides of the boundary.
func (r *Registry) Register(name string, fn any) error {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("%w: %q is %T", ErrNotFunc, name, fn)
	}
	pc := v.Pointer()
	if rf := runtime.FuncForPC(pc); rf != nil && anonymous.MatchString(rf.Name()) {
		return fmt.Errorf("%w: %q is %s", ErrAnonymousFunc, name, rf.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: name %q", ErrDuplicateFunc, name)
	}
	if prev, ok := r.byPC[pc]; ok {
		return fmt.Errorf("%w: %q is already registered as %q", ErrDuplicateFunc, name, prev)
	}
	r.byName[name] = fn
	r.byPC[pc] = name
	return nil
}

// MustRegister is like Register but panics on error. It is meant for init
// functions and package-level setup.
func (r *Registry) MustRegister(name string, fn any) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// NameOf returns the name fn was registered under.
func (r *Registry) NameOf(fn any) (string, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return "", fmt.Errorf("%w: %T", ErrNotFunc, fn)
	}
	pc := v.Pointer()

	r.mu.RLock()
	name, ok := r.byPC[pc]
	r.mu.RUnlock()
	if ok {
		return name, nil
	}

	if rf := runtime.FuncForPC(pc); rf != nil {
		if anonymous.MatchString(rf.Name()) {
			return "", fmt.Errorf("%w: %s", ErrAnonymousFunc, rf.Name())
		}
		return "", fmt.Errorf("%w: %s", ErrUnregisteredFunc, rf.Name())
	}
	return "", ErrUnregisteredFunc
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.byName[name]
	return fn, ok
}
