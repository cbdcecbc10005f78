package engine

import (
	"context"
	"fmt"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/spf13/afero"
)

// loadFile indexes every line of the file and makes it the loaded file. A
// failed load leaves no file loaded.
func (e *Engine) loadFile(ctx context.Context, _ int, data any, rep *reporter) (string, any, error) {
	var p protocol.LoadFileData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}
	e.file = nil

	f, size, err := e.open(p.Path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	var lines []span
	err = scanLines(f, 0, size, e.chunkSize, func(s span, _ []byte) error {
		if err := ctx.Err(); err != nil {
			return ErrShuttingDown
		}
		lines = append(lines, s)
		if size > 0 {
			rep.report(float64(s.end) / float64(size))
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	rep.report(1)

	e.file = &loadedFile{path: p.Path, size: size, lines: lines}
	e.logger.Debug("file loaded", "path", p.Path, "size", size, "line_count", len(lines))
	return fmt.Sprintf("loaded %s", p.Path),
		protocol.LoadFileResult{LineCount: len(lines), Size: size}, nil
}

// sniffLines returns the first lines of a file without touching the loaded
// file.
func (e *Engine) sniffLines(ctx context.Context, _ int, data any, rep *reporter) (string, any, error) {
	var p protocol.SniffLinesData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}

	lines := make([]string, 0, p.Count)
	if p.Count == 0 {
		return "sniffed 0 lines", lines, nil
	}

	f, size, err := e.open(p.Path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	err = scanLines(f, 0, size, e.chunkSize, func(_ span, raw []byte) error {
		if err := ctx.Err(); err != nil {
			return ErrShuttingDown
		}
		lines = append(lines, closure.DecodeUTF8(raw))
		rep.report(float64(len(lines)) / float64(p.Count))
		if len(lines) == p.Count {
			return errStop
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("sniffed %d lines", len(lines)), lines, nil
}

func (e *Engine) open(path string) (afero.File, int64, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	return f, info.Size(), nil
}
