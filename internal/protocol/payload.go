package protocol

// LoadFileData is the payload of a load-file request.
type LoadFileData struct {
	Path string `json:"path" validate:"required"`
}

// LoadFileResult is the terminal result of load-file.
type LoadFileResult struct {
	LineCount int   `json:"lineCount"`
	Size      int64 `json:"size"`
}

// SniffLinesData asks for the first Count lines of a file without loading it.
type SniffLinesData struct {
	Path  string `json:"path" validate:"required"`
	Count int    `json:"count" validate:"gte=0"`
}

// ChunkSizeData is the payload and result of set-chunk-size.
type ChunkSizeData struct {
	ChunkSize int `json:"chunkSize" validate:"gt=0"`
}

// DiagnosticsData is the payload and result of enable-diagnostics.
type DiagnosticsData struct {
	Enabled bool `json:"enabled"`
}

// LineRange selects Count lines starting at the 0-based line Start.
type LineRange struct {
	Start int `json:"start" validate:"gte=0"`
	Count int `json:"count" validate:"gte=0"`
}

// ToEnd as a LineRange count selects every line from Start onwards. It is
// only accepted by iterate-lines.
const ToEnd = -1

// GetLinesByRangesData is the payload of get-lines-by-ranges.
type GetLinesByRangesData struct {
	Ranges []LineRange `json:"ranges" validate:"dive"`
}

// SporadicLinesData lists 0-based line numbers to fetch.
type SporadicLinesData struct {
	Lines []int `json:"lines" validate:"dive,gte=0"`
}

// SporadicLine is one entry of a get-sporadic-lines result.
type SporadicLine struct {
	LineNumber int    `json:"lineNumber"`
	Value      string `json:"value"`
}

// IteratorConfigMessage is the transmittable form of a per-line callback and
// its scope. EachLineSource and every string found at a FunctionMap path name
// a function registered on both sides of the boundary.
type IteratorConfigMessage struct {
	EachLineSource string         `json:"eachLineSource" validate:"required"`
	Scope          map[string]any `json:"scope"`
	FunctionMap    [][]string     `json:"functionMap"`
}

// IterateLinesData is the payload of iterate-lines.
type IterateLinesData struct {
	Config IteratorConfigMessage `json:"config"`
	Start  int                   `json:"start" validate:"gte=0"`
	Count  int                   `json:"count" validate:"gte=-1"`
}

// IterateSporadicLinesData is the payload of iterate-sporadic-lines.
type IterateSporadicLinesData struct {
	Config IteratorConfigMessage `json:"config"`
	Lines  []int                 `json:"lines" validate:"dive,gte=0"`
}
