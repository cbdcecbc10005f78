package api

import (
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/phrazzld/txtreader/internal/task"
	"github.com/phrazzld/txtreader/internal/txtreader"
)

// LoadRequest asks the worker to load a file.
type LoadRequest struct {
	Path string `json:"path" validate:"required"`
}

// LoadResponse reports the loaded file.
type LoadResponse struct {
	Path        string `json:"path"`
	LineCount   int    `json:"lineCount"`
	Size        int64  `json:"size"`
	TimeTakenMs int64  `json:"timeTakenMs"`
}

// SniffRequest asks for the first lines of a file without loading it.
type SniffRequest struct {
	Path  string `json:"path" validate:"required"`
	Count int    `json:"count" validate:"gte=1,lte=10000"`
}

// LinesResponse carries lines of the loaded file.
type LinesResponse struct {
	Start int      `json:"start"`
	Lines []string `json:"lines"`
}

// RangesRequest asks for several ranges of lines.
type RangesRequest struct {
	Ranges []protocol.LineRange `json:"ranges" validate:"required,min=1,dive"`
}

// RangesResponse carries one slice of lines per requested range.
type RangesResponse struct {
	Ranges [][]string `json:"ranges"`
}

// SporadicRequest asks for individual lines.
type SporadicRequest struct {
	Lines []int `json:"lines" validate:"required,min=1,dive,gte=0"`
}

// SporadicResponse carries the requested lines in request order.
type SporadicResponse struct {
	Lines []protocol.SporadicLine `json:"lines"`
}

// SearchRequest runs a matcher over every line of the loaded file.
type SearchRequest struct {
	Needle string `json:"needle" validate:"required"`
	// Mode selects the matcher: contains (default), prefix or fold.
	Mode  string `json:"mode" validate:"omitempty,oneof=contains prefix fold"`
	Limit int    `json:"limit" validate:"gte=0"`
}

// Match is one matching line.
type Match struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// SearchResponse reports every match, truncated to the requested limit.
type SearchResponse struct {
	Total   int     `json:"total"`
	Matches []Match `json:"matches"`
}

// StatusResponse describes the reader.
type StatusResponse struct {
	Status    string `json:"status"`
	Loaded    bool   `json:"loaded"`
	Path      string `json:"path,omitempty"`
	LineCount int    `json:"lineCount"`
	Running   *int   `json:"running,omitempty"`
	Pending   []int  `json:"pending"`

	Worker *txtreader.WorkerInfo `json:"worker,omitempty"`
}

// HistoryResponse lists recent tasks, oldest first.
type HistoryResponse struct {
	Tasks []task.TaskRecord `json:"tasks"`
}
