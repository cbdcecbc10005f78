package txtreader_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/mocks"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/phrazzld/txtreader/internal/task"
	"github.com/phrazzld/txtreader/internal/txtreader"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countMatches(rec *closure.Record) error {
	if strings.Contains(rec.Decode(), rec.Scope.String("needle")) {
		rec.Scope["matches"] = rec.Scope.Int("matches") + 1
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *closure.Registry {
	t.Helper()
	reg := closure.NewRegistry()
	require.NoError(t, reg.Register("countMatches", countMatches))
	return reg
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func openReader(t *testing.T, codecName string, content string) *txtreader.Reader {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/log.txt", []byte(content), 0o644))

	opts := txtreader.DefaultOptions()
	opts.Codec = codecName
	r, err := txtreader.Open(fs, testRegistry(t), opts, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestGetLinesBeforeLoadSendsNothing(t *testing.T) {
	t.Parallel()

	peer := mocks.NewMockPeer()
	scheduler := task.NewScheduler(peer, task.DefaultSchedulerConfig(), testLogger())
	r := txtreader.New(scheduler, testRegistry(t), 0, testLogger())
	t.Cleanup(func() { _ = r.Close() })

	_, err := txtreader.Await[[]string](ctx(t), r.GetLines(0, 10))
	require.Error(t, err)
	assert.Equal(t, protocol.MsgNotLoaded, err.Error())
	assert.Zero(t, peer.SendCount())
	assert.False(t, r.Loaded())
	assert.Equal(t, -1, r.LineCount())
	_, ok := r.Worker()
	assert.False(t, ok, "a caller-owned peer is not reported")
}

func TestInvalidArgumentsRejectLocally(t *testing.T) {
	t.Parallel()

	peer := mocks.NewMockPeer()
	scheduler := task.NewScheduler(peer, task.DefaultSchedulerConfig(), testLogger())
	r := txtreader.New(scheduler, testRegistry(t), 0, testLogger())
	t.Cleanup(func() { _ = r.Close() })

	anonymous := func(*closure.Record) error { return nil }
	tasks := []*task.Task{
		r.LoadFile(""),
		r.SetChunkSize(0),
		r.SniffLines("/log.txt", -1),
		r.IterateLines(closure.IteratorConfig{EachLine: anonymous}),
		r.IterateLines(closure.IteratorConfig{
			EachLine: countMatches,
			Scope:    map[string]any{"fns": []any{countMatches}},
		}),
	}
	for _, tk := range tasks {
		_, err := tk.Wait(ctx(t))
		assert.Error(t, err, tk.Request().Action)
	}
	assert.Zero(t, peer.SendCount())
}

func TestLoadThenQueuedGetLines(t *testing.T) {
	t.Parallel()

	for _, codecName := range []string{"json", "cbor"} {
		t.Run(codecName, func(t *testing.T) {
			r := openReader(t, codecName, "alpha\nbeta\ngamma\ndelta\n")

			load := r.LoadFile("/log.txt")
			get := r.GetLines(1, 2)
			assert.Equal(t, task.StateQueued, get.State(), "get-lines waits behind the load")

			result, err := txtreader.Await[protocol.LoadFileResult](ctx(t), load)
			require.NoError(t, err)
			assert.Equal(t, 4, result.LineCount)

			lines, err := txtreader.Await[[]string](ctx(t), get)
			require.NoError(t, err)
			assert.Equal(t, []string{"beta", "gamma"}, lines)

			assert.True(t, r.Loaded())
			assert.Equal(t, "/log.txt", r.Path())
			assert.Equal(t, 4, r.LineCount())

			info, ok := r.Worker()
			require.True(t, ok)
			assert.Equal(t, codecName, info.Codec)
			assert.Equal(t, int64(2), info.Stats.RequestsSent)
		})
	}
}

func TestGetLinesClipsHugeCount(t *testing.T) {
	t.Parallel()

	// CBOR keeps integers exact, so the full count reaches the worker.
	r := openReader(t, "cbor", "alpha\nbeta\ngamma\n")
	_, err := txtreader.Await[protocol.LoadFileResult](ctx(t), r.LoadFile("/log.txt"))
	require.NoError(t, err)

	lines, err := txtreader.Await[[]string](ctx(t), r.GetLines(1, math.MaxInt))
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "gamma"}, lines)
}

func TestFailedLoadUnloads(t *testing.T) {
	t.Parallel()

	r := openReader(t, "json", "a\nb\n")
	_, err := txtreader.Await[protocol.LoadFileResult](ctx(t), r.LoadFile("/log.txt"))
	require.NoError(t, err)

	_, err = txtreader.Await[protocol.LoadFileResult](ctx(t), r.LoadFile("/missing.txt"))
	require.Error(t, err)
	assert.False(t, r.Loaded())

	_, err = txtreader.Await[[]string](ctx(t), r.GetLines(0, 1))
	assert.EqualError(t, err, protocol.MsgNotLoaded)
}

func TestReaderLineActions(t *testing.T) {
	t.Parallel()

	r := openReader(t, "json", "l0\nl1\nl2\nl3\nl4")
	r.LoadFile("/log.txt")

	ranges, err := txtreader.Await[[][]string](ctx(t), r.GetLinesByRanges([]protocol.LineRange{
		{Start: 0, Count: 2},
		{Start: 4, Count: 3},
	}))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"l0", "l1"}, {"l4"}}, ranges)

	sporadic, err := txtreader.Await[[]protocol.SporadicLine](ctx(t), r.GetSporadicLines([]int{3, 1}))
	require.NoError(t, err)
	assert.Equal(t, []protocol.SporadicLine{{LineNumber: 3, Value: "l3"}, {LineNumber: 1, Value: "l1"}}, sporadic)

	sniffed, err := txtreader.Await[[]string](ctx(t), r.SniffLines("/log.txt", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"l0"}, sniffed)

	chunk, err := txtreader.Await[protocol.ChunkSizeData](ctx(t), r.SetChunkSize(2))
	require.NoError(t, err)
	assert.Equal(t, 2, chunk.ChunkSize)

	diag, err := txtreader.Await[protocol.DiagnosticsData](ctx(t), r.EnableDiagnostics(true))
	require.NoError(t, err)
	assert.True(t, diag.Enabled)
}

func TestReaderIterate(t *testing.T) {
	t.Parallel()

	r := openReader(t, "cbor", "error: disk\ninfo: ok\nerror: net\ninfo: fine\n")
	r.LoadFile("/log.txt")

	cfg := closure.IteratorConfig{
		EachLine: countMatches,
		Scope:    map[string]any{"needle": "error", "matches": 0},
	}

	scope, err := txtreader.Await[map[string]any](ctx(t), r.IterateLines(cfg))
	require.NoError(t, err)
	assert.EqualValues(t, 2, scope["matches"])
	assert.Equal(t, "error", scope["needle"])
	assert.Equal(t, 0, cfg.Scope["matches"], "the caller's scope is unchanged")

	scope, err = txtreader.Await[map[string]any](ctx(t), r.IterateLineRange(cfg, 1, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 1, scope["matches"])

	scope, err = txtreader.Await[map[string]any](ctx(t), r.IterateSporadicLines(cfg, []int{0, 2, 3}))
	require.NoError(t, err)
	assert.EqualValues(t, 2, scope["matches"])

	history := r.Scheduler().History()
	require.Len(t, history, 4)
	for i, rec := range history {
		assert.Equal(t, i+1, rec.ID)
	}
}
