package closure

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumLine(rec *Record) error {
	double := rec.Scope.Func("util", "double").(func(int) int)
	rec.Scope["total"] = rec.Scope.Int("total") + double(rec.Scope.Int("factor"))
	return nil
}

func doubleInt(n int) int {
	return n * 2
}

func upper(s string) string {
	return strings.ToUpper(s)
}

func unregistered(*Record) error {
	return nil
}

type counter struct{ n int }

func (c *counter) each(*Record) error {
	c.n++
	return nil
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("sumLine", sumLine))
	require.NoError(t, reg.Register("double", doubleInt))
	require.NoError(t, reg.Register("upper", upper))
	return reg
}

func TestRegister(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	assert.ErrorIs(t, reg.Register("notfunc", 3), ErrNotFunc)
	assert.ErrorIs(t, reg.Register("double", upper), ErrDuplicateFunc)
	assert.ErrorIs(t, reg.Register("again", doubleInt), ErrDuplicateFunc)

	literal := func(*Record) error { return nil }
	assert.ErrorIs(t, reg.Register("literal", literal), ErrAnonymousFunc)

	c := &counter{}
	assert.ErrorIs(t, reg.Register("method", c.each), ErrAnonymousFunc)

	name, err := reg.NameOf(doubleInt)
	require.NoError(t, err)
	assert.Equal(t, "double", name)

	fn, ok := reg.Lookup("upper")
	require.True(t, ok)
	assert.Equal(t, "ABC", fn.(func(string) string)("abc"))

	assert.Panics(t, func() { reg.MustRegister("upper", upper) })
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	scope := map[string]any{
		"util":   map[string]any{"double": doubleInt},
		"factor": 3,
	}

	msg, err := Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: scope})
	require.NoError(t, err)

	assert.Equal(t, "sumLine", msg.EachLineSource)
	assert.Equal(t, [][]string{{"eachLine"}, {"scope", "util", "double"}}, msg.FunctionMap)
	assert.Equal(t, 3, msg.Scope["factor"])
	assert.Equal(t, map[string]any{"double": "double"}, msg.Scope["util"])

	_, isFunc := scope["util"].(map[string]any)["double"].(func(int) int)
	assert.True(t, isFunc, "the caller's scope is not modified")
}

func TestMarshalPassesDataThrough(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	scope := map[string]any{
		"name":    "words",
		"limit":   10.5,
		"tags":    []any{"a", "b"},
		"enabled": true,
		"missing": nil,
		"typed":   map[string]int{"x": 1},
	}

	msg, err := Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: scope})
	require.NoError(t, err)
	assert.Equal(t, scope, msg.Scope)
	assert.Equal(t, [][]string{{"eachLine"}}, msg.FunctionMap)
}

func TestMarshalFunctionsInSortedOrder(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	msg, err := Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: map[string]any{
		"z": upper,
		"a": map[string]any{"b": doubleInt},
	}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"eachLine"}, {"scope", "a", "b"}, {"scope", "z"}}, msg.FunctionMap)
}

func TestMarshalRejectsCapturedState(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	offset := 5

	tests := []struct {
		name    string
		cfg     IteratorConfig
		wantErr error
	}{
		{
			name:    "nil eachLine",
			cfg:     IteratorConfig{},
			wantErr: ErrNotFunc,
		},
		{
			name:    "unregistered eachLine",
			cfg:     IteratorConfig{EachLine: unregistered},
			wantErr: ErrUnregisteredFunc,
		},
		{
			name: "closure in scope",
			cfg: IteratorConfig{EachLine: sumLine, Scope: map[string]any{
				"util": map[string]any{"shift": func(n int) int { return n + offset }},
			}},
			wantErr: ErrAnonymousFunc,
		},
		{
			name: "function in slice",
			cfg: IteratorConfig{EachLine: sumLine, Scope: map[string]any{
				"fns": []any{doubleInt},
			}},
			wantErr: ErrNestedFunc,
		},
		{
			name: "function in typed map",
			cfg: IteratorConfig{EachLine: sumLine, Scope: map[string]any{
				"byName": map[string]func(int) int{"double": doubleInt},
			}},
			wantErr: ErrNestedFunc,
		},
		{
			name: "function in map inside slice",
			cfg: IteratorConfig{EachLine: sumLine, Scope: map[string]any{
				"steps": []any{1, map[string]any{"apply": upper}},
			}},
			wantErr: ErrNestedFunc,
		},
		{
			name: "closure as eachLine",
			cfg: IteratorConfig{EachLine: func(*Record) error {
				offset++
				return nil
			}},
			wantErr: ErrAnonymousFunc,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(reg, tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMarshalNestedFuncLocation(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	_, err := Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: map[string]any{
		"util": map[string]any{"fns": []any{"x", doubleInt}},
	}})
	require.ErrorIs(t, err, ErrNestedFunc)
	assert.Contains(t, err.Error(), `["scope"]["util"]["fns"][1]`)

	cyclic := []any{nil}
	cyclic[0] = cyclic
	_, err = Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: map[string]any{"loop": cyclic}})
	assert.ErrorIs(t, err, ErrScopeTooDeep)
}

func TestMarshalDepthLimit(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	deep := map[string]any{"leaf": 1}
	for i := 0; i < 5; i++ {
		deep = map[string]any{"next": deep}
	}

	_, err := Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: deep}, WithMaxDepth(3))
	assert.ErrorIs(t, err, ErrScopeTooDeep)

	_, err = Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: deep}, WithMaxDepth(10))
	assert.NoError(t, err)

	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	_, err = Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: cyclic})
	assert.ErrorIs(t, err, ErrScopeTooDeep)
}

func TestReconstructAfterTransport(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	msg, err := Marshal(reg, IteratorConfig{EachLine: sumLine, Scope: map[string]any{
		"util":   map[string]any{"double": doubleInt},
		"factor": 3,
	}})
	require.NoError(t, err)

	frame, err := json.Marshal(msg)
	require.NoError(t, err)
	var received protocol.IteratorConfigMessage
	require.NoError(t, json.Unmarshal(frame, &received))

	eachLine, scope, err := Reconstruct(reg, received)
	require.NoError(t, err)

	rec := &Record{Raw: []byte("x"), Scope: scope}
	require.NoError(t, eachLine(rec))
	require.NoError(t, eachLine(rec))
	assert.Equal(t, 12, scope.Int("total"))

	back, paths, err := MarshalScope(reg, scope)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"util", "double"}}, paths)
	assert.Equal(t, map[string]any{"double": "double"}, back["util"])
	assert.Equal(t, 12, back["total"])

	_, isName := received.Scope["util"].(map[string]any)["double"].(string)
	assert.True(t, isName, "reconstruction works on a copy")
}

func TestReconstructErrors(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	tests := []struct {
		name    string
		msg     protocol.IteratorConfigMessage
		wantErr error
	}{
		{
			name:    "unknown eachLine",
			msg:     protocol.IteratorConfigMessage{EachLineSource: "nope", FunctionMap: [][]string{{"eachLine"}}},
			wantErr: ErrUnknownFunc,
		},
		{
			name:    "eachLine of wrong type",
			msg:     protocol.IteratorConfigMessage{EachLineSource: "upper", FunctionMap: [][]string{{"eachLine"}}},
			wantErr: ErrBadEachLine,
		},
		{
			name:    "missing eachLine entry",
			msg:     protocol.IteratorConfigMessage{EachLineSource: "sumLine"},
			wantErr: ErrBadFunctionMap,
		},
		{
			name: "path to nothing",
			msg: protocol.IteratorConfigMessage{
				EachLineSource: "sumLine",
				FunctionMap:    [][]string{{"eachLine"}, {"scope", "util", "double"}},
			},
			wantErr: ErrBadFunctionMap,
		},
		{
			name: "unknown root",
			msg: protocol.IteratorConfigMessage{
				EachLineSource: "sumLine",
				FunctionMap:    [][]string{{"eachLine"}, {"globals", "x"}},
			},
			wantErr: ErrBadFunctionMap,
		},
		{
			name: "unknown scope function",
			msg: protocol.IteratorConfigMessage{
				EachLineSource: "sumLine",
				Scope:          map[string]any{"f": "gone"},
				FunctionMap:    [][]string{{"eachLine"}, {"scope", "f"}},
			},
			wantErr: ErrUnknownFunc,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Reconstruct(reg, tt.msg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecordDecode(t *testing.T) {
	t.Parallel()

	rec := &Record{Raw: []byte("h\xc3\xa9llo \xff")}
	assert.Equal(t, "héllo �", rec.Decode())
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `["scope"]["util"]["double"]`, FormatPath([]string{"scope", "util", "double"}))
	assert.Equal(t, "", FormatPath(nil))
}

func TestScopeAccessors(t *testing.T) {
	t.Parallel()

	s := Scope{
		"a":    map[string]any{"b": map[string]any{"c": "deep"}},
		"n64":  uint64(7),
		"f":    float64(2),
		"name": "x",
	}
	v, ok := s.Get("a", "b", "c")
	require.True(t, ok)
	assert.Equal(t, "deep", v)

	_, ok = s.Get("a", "missing")
	assert.False(t, ok)
	_, ok = s.Get("name", "deeper")
	assert.False(t, ok)

	assert.Equal(t, 7, s.Int("n64"))
	assert.Equal(t, 2, s.Int("f"))
	assert.Equal(t, 0, s.Int("name"))
	assert.Equal(t, "x", s.String("name"))
	assert.Nil(t, s.Func("nothing"))
}
