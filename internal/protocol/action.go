package protocol

// Action names the operation a Request asks the worker to perform.
type Action string

// Actions understood by the worker.
const (
	ActionLoadFile             Action = "load-file"
	ActionSniffLines           Action = "sniff-lines"
	ActionSetChunkSize         Action = "set-chunk-size"
	ActionEnableDiagnostics    Action = "enable-diagnostics"
	ActionGetLines             Action = "get-lines"
	ActionGetLinesByRanges     Action = "get-lines-by-ranges"
	ActionGetSporadicLines     Action = "get-sporadic-lines"
	ActionIterateLines         Action = "iterate-lines"
	ActionIterateSporadicLines Action = "iterate-sporadic-lines"
)

var knownActions = map[Action]bool{
	ActionLoadFile:             true,
	ActionSniffLines:           true,
	ActionSetChunkSize:         true,
	ActionEnableDiagnostics:    true,
	ActionGetLines:             true,
	ActionGetLinesByRanges:     true,
	ActionGetSporadicLines:     true,
	ActionIterateLines:         true,
	ActionIterateSporadicLines: true,
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return knownActions[a]
}

// RequiresLoadedFile reports whether the action can only run after a
// successful load-file.
func (a Action) RequiresLoadedFile() bool {
	switch a {
	case ActionGetLines, ActionGetLinesByRanges, ActionGetSporadicLines,
		ActionIterateLines, ActionIterateSporadicLines:
		return true
	default:
		return false
	}
}

func (a Action) String() string {
	return string(a)
}
