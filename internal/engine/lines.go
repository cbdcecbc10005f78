package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/protocol"
)

// selectRange resolves a 0-based range against the loaded file. Count is
// clipped to the end of the file; ToEnd is honoured only when toEnd is set.
func (e *Engine) selectRange(r protocol.LineRange, toEnd bool) ([]span, error) {
	total := len(e.file.lines)
	if r.Start < 0 || r.Start > total {
		return nil, fmt.Errorf("%w: start %d, file has %d lines", ErrOutOfRange, r.Start, total)
	}
	var end int
	switch {
	case r.Count == protocol.ToEnd && toEnd:
		end = total
	case r.Count < 0:
		return nil, fmt.Errorf("%w: count %d", ErrOutOfRange, r.Count)
	case r.Count > total-r.Start:
		end = total
	default:
		end = r.Start + r.Count
	}
	return e.file.lines[r.Start:end], nil
}

func (e *Engine) selectLines(numbers []int) ([]span, error) {
	total := len(e.file.lines)
	spans := make([]span, len(numbers))
	for i, n := range numbers {
		if n < 0 || n >= total {
			return nil, fmt.Errorf("%w: line %d, file has %d lines", ErrOutOfRange, n, total)
		}
		spans[i] = e.file.lines[n]
	}
	return spans, nil
}

// readLines calls fn with the bytes of every span in order. Ascending
// neighbouring spans are fetched together in reads of at most one chunk.
func (e *Engine) readLines(ctx context.Context, spans []span, rep *reporter, fn func(i int, raw []byte) error) error {
	if len(spans) == 0 {
		return nil
	}
	f, _, err := e.open(e.file.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return readGrouped(ctx, f, spans, e.chunkSize, rep, fn)
}

func readGrouped(ctx context.Context, r io.ReaderAt, spans []span, chunkSize int, rep *reporter, fn func(i int, raw []byte) error) error {
	for i := 0; i < len(spans); {
		if err := ctx.Err(); err != nil {
			return ErrShuttingDown
		}
		j := i + 1
		for j < len(spans) &&
			spans[j].start >= spans[j-1].end &&
			spans[j].end-spans[i].start <= int64(chunkSize) {
			j++
		}

		block, err := readSpans(r, spans[i:j])
		if err != nil {
			return err
		}
		for k, raw := range block {
			if err := fn(i+k, raw); err != nil {
				return err
			}
			if rep != nil {
				rep.report(float64(i+k+1) / float64(len(spans)))
			}
		}
		i = j
	}
	return nil
}

func (e *Engine) getLines(ctx context.Context, _ int, data any, rep *reporter) (string, any, error) {
	var p protocol.LineRange
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}
	spans, err := e.selectRange(p, false)
	if err != nil {
		return "", nil, err
	}

	out := make([]string, len(spans))
	err = e.readLines(ctx, spans, rep, func(i int, raw []byte) error {
		out[i] = closure.DecodeUTF8(raw)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("read %d lines", len(out)), out, nil
}

func (e *Engine) getLinesByRanges(ctx context.Context, _ int, data any, rep *reporter) (string, any, error) {
	var p protocol.GetLinesByRangesData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}

	var all []span
	bounds := make([]int, 0, len(p.Ranges)+1)
	for _, r := range p.Ranges {
		spans, err := e.selectRange(r, false)
		if err != nil {
			return "", nil, err
		}
		bounds = append(bounds, len(all))
		all = append(all, spans...)
	}
	bounds = append(bounds, len(all))

	flat := make([]string, len(all))
	err := e.readLines(ctx, all, rep, func(i int, raw []byte) error {
		flat[i] = closure.DecodeUTF8(raw)
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	out := make([][]string, len(p.Ranges))
	for i := range p.Ranges {
		out[i] = flat[bounds[i]:bounds[i+1]]
	}
	return fmt.Sprintf("read %d lines in %d ranges", len(all), len(out)), out, nil
}

func (e *Engine) getSporadicLines(ctx context.Context, _ int, data any, rep *reporter) (string, any, error) {
	var p protocol.SporadicLinesData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}
	spans, err := e.selectLines(p.Lines)
	if err != nil {
		return "", nil, err
	}

	out := make([]protocol.SporadicLine, len(spans))
	err = e.readLines(ctx, spans, rep, func(i int, raw []byte) error {
		out[i] = protocol.SporadicLine{LineNumber: p.Lines[i], Value: closure.DecodeUTF8(raw)}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("read %d lines", len(out)), out, nil
}
