package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// logBuffer is a thread-safe writer for capturing JSON log output.
type logBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// entries parses the contents as one JSON log entry per line.
func (b *logBuffer) entries() ([]map[string]any, error) {
	var out []map[string]any
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("failed to parse log entry %q: %w", line, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// find returns the entries whose msg equals message.
func (b *logBuffer) find(message string) ([]map[string]any, error) {
	all, err := b.entries()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, e := range all {
		if e["msg"] == message {
			out = append(out, e)
		}
	}
	return out, nil
}
