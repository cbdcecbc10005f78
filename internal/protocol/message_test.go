package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		want    float64
		wantErr bool
	}{
		{name: "int", input: 50, want: 50},
		{name: "float64 from json", input: float64(12.5), want: 12.5},
		{name: "uint64 from cbor", input: uint64(100), want: 100},
		{name: "int64 zero", input: int64(0), want: 0},
		{name: "negative", input: -1, wantErr: true},
		{name: "above hundred", input: 100.5, wantErr: true},
		{name: "nan", input: math.NaN(), wantErr: true},
		{name: "string", input: "50", wantErr: true},
		{name: "nil", input: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProgressValue(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponseBuilders(t *testing.T) {
	t.Parallel()

	p := Progress(3, 40)
	assert.Equal(t, Response{TaskID: 3, Success: true, Done: false, Result: 40}, p)

	s := Succeeded(4, "ok", []string{"a"})
	assert.True(t, s.Done)
	assert.True(t, s.Success)

	f := Failed(5, MsgNotLoaded)
	assert.True(t, f.Done)
	assert.False(t, f.Success)
	assert.Equal(t, MsgNotLoaded, f.Message)
	assert.Nil(t, f.Result)
}

func TestAction(t *testing.T) {
	t.Parallel()

	assert.True(t, ActionIterateSporadicLines.Valid())
	assert.False(t, Action("delete-file").Valid())

	assert.True(t, ActionGetLines.RequiresLoadedFile())
	assert.True(t, ActionIterateLines.RequiresLoadedFile())
	assert.False(t, ActionLoadFile.RequiresLoadedFile())
	assert.False(t, ActionSniffLines.RequiresLoadedFile())
	assert.False(t, ActionSetChunkSize.RequiresLoadedFile())
	assert.Equal(t, "get-lines-by-ranges", ActionGetLinesByRanges.String())
}
