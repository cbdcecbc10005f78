package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/txtreader/internal/api/shared"
	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/codec"
	"github.com/phrazzld/txtreader/internal/linefuncs"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/phrazzld/txtreader/internal/task"
	"github.com/phrazzld/txtreader/internal/txtreader"
)

// Reader is the part of txtreader.Reader the handlers use.
type Reader interface {
	LoadFile(path string) *task.Task
	SniffLines(path string, count int) *task.Task
	GetLines(start, count int) *task.Task
	GetLinesByRanges(ranges []protocol.LineRange) *task.Task
	GetSporadicLines(lines []int) *task.Task
	IterateLines(cfg closure.IteratorConfig) *task.Task
	Loaded() bool
	Path() string
	LineCount() int
	Scheduler() *task.Scheduler
	Worker() (txtreader.WorkerInfo, bool)
}

var _ Reader = (*txtreader.Reader)(nil)

// ReaderHandler serves the reader endpoints.
type ReaderHandler struct {
	reader  Reader
	timeout time.Duration
	logger  *slog.Logger
}

// NewReaderHandler creates a handler. timeout bounds how long a request
// waits for its task; zero waits as long as the client does.
func NewReaderHandler(reader Reader, timeout time.Duration, logger *slog.Logger) *ReaderHandler {
	return &ReaderHandler{
		reader:  reader,
		timeout: timeout,
		logger:  logger.With("component", "reader_handler"),
	}
}

func (h *ReaderHandler) waitCtx(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(r.Context(), h.timeout)
	}
	return context.WithCancel(r.Context())
}

func (h *ReaderHandler) respondTaskError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// decodeRequest decodes and validates the body into req, writing a 400 on
// failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Validation failed: "+err.Error(), err)
		return false
	}
	return true
}

// Status handles GET /api/status.
func (h *ReaderHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:    "ok",
		Loaded:    h.reader.Loaded(),
		Path:      h.reader.Path(),
		LineCount: h.reader.LineCount(),
		Pending:   h.reader.Scheduler().Pending(),
	}
	if id, ok := h.reader.Scheduler().Running(); ok {
		resp.Running = &id
	}
	if info, ok := h.reader.Worker(); ok {
		resp.Worker = &info
	}
	if err := h.reader.Scheduler().Err(); err != nil {
		resp.Status = "halted"
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Load handles POST /api/load.
func (h *ReaderHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := h.waitCtx(r)
	defer cancel()

	c, err := h.reader.LoadFile(req.Path).Wait(ctx)
	if err != nil {
		h.respondTaskError(w, r, err)
		return
	}
	var result protocol.LoadFileResult
	if err := task.DecodeResult(c, &result); err != nil {
		h.respondTaskError(w, r, err)
		return
	}

	h.logger.Info("file loaded over http", "path", req.Path, "line_count", result.LineCount)
	shared.RespondWithJSON(w, r, http.StatusOK, LoadResponse{
		Path:        req.Path,
		LineCount:   result.LineCount,
		Size:        result.Size,
		TimeTakenMs: c.TimeTaken.Milliseconds(),
	})
}

// Sniff handles POST /api/sniff.
func (h *ReaderHandler) Sniff(w http.ResponseWriter, r *http.Request) {
	var req SniffRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := h.waitCtx(r)
	defer cancel()

	lines, err := txtreader.Await[[]string](ctx, h.reader.SniffLines(req.Path, req.Count))
	if err != nil {
		h.respondTaskError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, LinesResponse{Start: 0, Lines: lines})
}

// Lines handles GET /api/lines?start=&count=.
func (h *ReaderHandler) Lines(w http.ResponseWriter, r *http.Request) {
	start, err := shared.QueryInt(r, "start", 0)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	count, err := shared.QueryInt(r, "count", 100)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.waitCtx(r)
	defer cancel()

	lines, err := txtreader.Await[[]string](ctx, h.reader.GetLines(start, count))
	if err != nil {
		h.respondTaskError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, LinesResponse{Start: start, Lines: lines})
}

// Ranges handles POST /api/lines/ranges.
func (h *ReaderHandler) Ranges(w http.ResponseWriter, r *http.Request) {
	var req RangesRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := h.waitCtx(r)
	defer cancel()

	ranges, err := txtreader.Await[[][]string](ctx, h.reader.GetLinesByRanges(req.Ranges))
	if err != nil {
		h.respondTaskError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RangesResponse{Ranges: ranges})
}

// Sporadic handles POST /api/lines/sporadic.
func (h *ReaderHandler) Sporadic(w http.ResponseWriter, r *http.Request) {
	var req SporadicRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := h.waitCtx(r)
	defer cancel()

	lines, err := txtreader.Await[[]protocol.SporadicLine](ctx, h.reader.GetSporadicLines(req.Lines))
	if err != nil {
		h.respondTaskError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SporadicResponse{Lines: lines})
}

// Search handles POST /api/search.
func (h *ReaderHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = "contains"
	}
	match, _ := linefuncs.Matcher(mode)

	cfg := closure.IteratorConfig{
		EachLine: linefuncs.CollectMatches,
		Scope: map[string]any{
			linefuncs.KeyNeedle: req.Needle,
			linefuncs.KeyLimit:  req.Limit,
			linefuncs.KeyMatch:  match,
		},
	}

	ctx, cancel := h.waitCtx(r)
	defer cancel()

	scope, err := txtreader.Await[map[string]any](ctx, h.reader.IterateLines(cfg))
	if err != nil {
		h.respondTaskError(w, r, err)
		return
	}

	resp := SearchResponse{Matches: []Match{}}
	if err := codec.Decode(scope, &resp); err != nil {
		h.respondTaskError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// History handles GET /api/tasks.
func (h *ReaderHandler) History(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HistoryResponse{Tasks: h.reader.Scheduler().History()})
}
