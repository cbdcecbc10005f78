package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/txtreader/internal/api"
	"github.com/phrazzld/txtreader/internal/linefuncs"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/phrazzld/txtreader/internal/txtreader"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const logContent = "alpha\nerror one\nbeta\nERROR two\nerror three\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/var/log/app.log", []byte(logContent), 0o644))

	reg, err := linefuncs.NewRegistry()
	require.NoError(t, err)
	reader, err := txtreader.Open(fs, reg, txtreader.DefaultOptions(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })

	handler := api.NewReaderHandler(reader, 5*time.Second, testLogger())
	srv := httptest.NewServer(api.NewRouter(handler, testLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func load(t *testing.T, srv *httptest.Server) api.LoadResponse {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/api/load", `{"path":"/var/log/app.log"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[api.LoadResponse](t, resp)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestStatus(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	status := decode[api.StatusResponse](t, resp)
	assert.Equal(t, "ok", status.Status)
	assert.False(t, status.Loaded)
	assert.Equal(t, -1, status.LineCount)
	assert.Nil(t, status.Running)
	require.NotNil(t, status.Worker)
	assert.Equal(t, "json", status.Worker.Codec)
	assert.NotEmpty(t, status.Worker.ID)
	assert.Zero(t, status.Worker.Stats.RequestsSent)

	load(t, srv)

	status = decode[api.StatusResponse](t, do(t, srv, http.MethodGet, "/api/status", ""))
	assert.True(t, status.Loaded)
	assert.Equal(t, "/var/log/app.log", status.Path)
	assert.Equal(t, 5, status.LineCount)
	require.NotNil(t, status.Worker)
	assert.Equal(t, int64(1), status.Worker.Stats.RequestsSent)
	assert.GreaterOrEqual(t, status.Worker.Stats.ResponsesReceived, int64(1))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		srv := newServer(t)
		result := load(t, srv)
		assert.Equal(t, "/var/log/app.log", result.Path)
		assert.Equal(t, 5, result.LineCount)
		assert.Equal(t, int64(len(logContent)), result.Size)
	})

	t.Run("missing file", func(t *testing.T) {
		srv := newServer(t)
		resp := do(t, srv, http.MethodPost, "/api/load", `{"path":"/nope.log"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		errResp := decode[map[string]any](t, resp)
		assert.Contains(t, errResp["error"], "failed to open /nope.log")
		assert.NotEmpty(t, errResp["trace_id"])
	})

	t.Run("unknown field", func(t *testing.T) {
		srv := newServer(t)
		resp := do(t, srv, http.MethodPost, "/api/load", `{"file":"/var/log/app.log"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing path", func(t *testing.T) {
		srv := newServer(t)
		resp := do(t, srv, http.MethodPost, "/api/load", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errResp := decode[map[string]any](t, resp)
		assert.Contains(t, errResp["error"], "Validation failed")
	})
}

func TestLinesRequireLoadedFile(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/api/lines?start=0&count=2", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := decode[map[string]any](t, resp)
	assert.Equal(t, protocol.MsgNotLoaded, errResp["error"])
}

func TestLines(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	load(t, srv)

	tests := []struct {
		name   string
		query  string
		status int
		lines  []string
	}{
		{"window", "?start=1&count=2", http.StatusOK, []string{"error one", "beta"}},
		{"clipped", "?start=3&count=10", http.StatusOK, []string{"ERROR two", "error three"}},
		{"at end", "?start=5&count=1", http.StatusOK, []string{}},
		{"out of range", "?start=9&count=1", http.StatusBadRequest, nil},
		{"bad query", "?start=abc", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodGet, "/api/lines"+tt.query, "")
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			got := decode[api.LinesResponse](t, resp)
			assert.ElementsMatch(t, tt.lines, got.Lines)
		})
	}
}

func TestRangesAndSporadic(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	load(t, srv)

	resp := do(t, srv, http.MethodPost, "/api/lines/ranges", `{"ranges":[{"start":0,"count":1},{"start":2,"count":2}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ranges := decode[api.RangesResponse](t, resp)
	assert.Equal(t, [][]string{{"alpha"}, {"beta", "ERROR two"}}, ranges.Ranges)

	resp = do(t, srv, http.MethodPost, "/api/lines/sporadic", `{"lines":[4,0]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sporadic := decode[api.SporadicResponse](t, resp)
	assert.Equal(t, []protocol.SporadicLine{
		{LineNumber: 4, Value: "error three"},
		{LineNumber: 0, Value: "alpha"},
	}, sporadic.Lines)

	resp = do(t, srv, http.MethodPost, "/api/lines/sporadic", `{"lines":[-1]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSniff(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/sniff", `{"path":"/var/log/app.log","count":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.LinesResponse](t, resp)
	assert.Equal(t, []string{"alpha", "error one"}, got.Lines)

	status := decode[api.StatusResponse](t, do(t, srv, http.MethodGet, "/api/status", ""))
	assert.False(t, status.Loaded)
}

func TestSearch(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	load(t, srv)

	tests := []struct {
		name    string
		body    string
		total   int
		matches []api.Match
	}{
		{
			name:    "contains",
			body:    `{"needle":"error"}`,
			total:   2,
			matches: []api.Match{{Line: 1, Text: "error one"}, {Line: 4, Text: "error three"}},
		},
		{
			name:    "limit",
			body:    `{"needle":"error","limit":1}`,
			total:   2,
			matches: []api.Match{{Line: 1, Text: "error one"}},
		},
		{
			name:  "fold",
			body:  `{"needle":"error","mode":"fold"}`,
			total: 3,
			matches: []api.Match{
				{Line: 1, Text: "error one"},
				{Line: 3, Text: "ERROR two"},
				{Line: 4, Text: "error three"},
			},
		},
		{
			name:    "prefix",
			body:    `{"needle":"be","mode":"prefix"}`,
			total:   1,
			matches: []api.Match{{Line: 2, Text: "beta"}},
		},
		{
			name:    "no match",
			body:    `{"needle":"zzz"}`,
			total:   0,
			matches: []api.Match{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodPost, "/api/search", tt.body)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			got := decode[api.SearchResponse](t, resp)
			assert.Equal(t, tt.total, got.Total)
			assert.Equal(t, tt.matches, got.Matches)
		})
	}

	t.Run("unknown mode", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/search", `{"needle":"x","mode":"regex"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHistory(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	load(t, srv)
	do(t, srv, http.MethodGet, "/api/lines?count=1", "")

	resp := do(t, srv, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Tasks []map[string]any `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history.Tasks, 2)
}

func TestMalformedJSON(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	for _, path := range []string{"/api/load", "/api/sniff", "/api/search", "/api/lines/ranges", "/api/lines/sporadic"} {
		resp, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewBufferString("{"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}
