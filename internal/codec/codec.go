// Package codec encodes protocol messages into the byte frames that cross the
// worker boundary, and decodes generic payloads into typed values.
package codec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownCodec is returned by Registry.Get for an unregistered name.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec marshals messages to bytes and back. Implementations must produce
// only plain data on decode: string-keyed maps, slices, strings, numbers,
// booleans and nil.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps codec names to codecs.
type Registry struct {
	byName map[string]Codec
}

// NewRegistry returns a registry holding the JSON and CBOR codecs.
func NewRegistry() (*Registry, error) {
	r := &Registry{byName: make(map[string]Codec)}
	r.Register(JSON())
	c, err := CBOR()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor codec: %w", err)
	}
	r.Register(c)
	return r, nil
}

// Register adds or replaces a codec under its name.
func (r *Registry) Register(c Codec) {
	r.byName[c.Name()] = c
}

// Get returns the codec registered under name.
func (r *Registry) Get(name string) (Codec, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownCodec, name, r.Names())
	}
	return c, nil
}

// Names lists the registered codec names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode converts a generic value, as produced by a codec, into out using the
// json field names of out's type. Numbers are converted between numeric kinds
// so a float64 from JSON and a uint64 from CBOR both decode into an int.
func Decode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: false,
		ErrorUnused:      false,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("failed to decode %T: %w", out, err)
	}
	return nil
}
