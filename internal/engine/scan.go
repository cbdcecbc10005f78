package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// span locates one line in the file. end excludes the line terminator.
type span struct {
	start int64
	end   int64
}

// scanLines reads r between start and end in chunkSize blocks and calls fn
// for every line, with the terminator and any trailing CR removed. raw is
// only valid during the call. Returning errStop from fn ends the scan
// without error.
func scanLines(r io.ReaderAt, start, end int64, chunkSize int, fn func(s span, raw []byte) error) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	var carry []byte
	lineStart := start
	pos := start

	emit := func(line []byte) error {
		raw := bytes.TrimSuffix(line, []byte{'\r'})
		if err := fn(span{start: lineStart, end: lineStart + int64(len(raw))}, raw); err != nil {
			return err
		}
		lineStart += int64(len(line)) + 1
		return nil
	}

	for pos < end {
		n := int64(chunkSize)
		if end-pos < n {
			n = end - pos
		}
		read, err := r.ReadAt(buf[:n], pos)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read at offset %d: %w", pos, err)
		}
		if read == 0 {
			break
		}
		pos += int64(read)

		data := buf[:read]
		for {
			i := bytes.IndexByte(data, '\n')
			if i < 0 {
				carry = append(carry, data...)
				break
			}
			var line []byte
			if len(carry) == 0 {
				line = data[:i]
			} else {
				carry = append(carry, data[:i]...)
				line = carry
			}
			if err := emit(line); err != nil {
				return stopIsNil(err)
			}
			carry = carry[:0]
			data = data[i+1:]
		}
	}

	if len(carry) > 0 {
		if err := emit(carry); err != nil {
			return stopIsNil(err)
		}
	}
	return nil
}

func stopIsNil(err error) error {
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

// readSpans reads the region covering spans into memory and returns each
// line's bytes, in order.
func readSpans(r io.ReaderAt, spans []span) ([][]byte, error) {
	if len(spans) == 0 {
		return nil, nil
	}
	base := spans[0].start
	block := make([]byte, spans[len(spans)-1].end-base)
	if _, err := r.ReadAt(block, base); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read lines at offset %d: %w", base, err)
	}
	out := make([][]byte, len(spans))
	for i, s := range spans {
		out[i] = block[s.start-base : s.end-base]
	}
	return out, nil
}
