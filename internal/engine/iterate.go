package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/protocol"
)

func (e *Engine) iterateLines(ctx context.Context, _ int, data any, rep *reporter) (string, any, error) {
	var p protocol.IterateLinesData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}
	spans, err := e.selectRange(protocol.LineRange{Start: p.Start, Count: p.Count}, true)
	if err != nil {
		return "", nil, err
	}
	return e.iterate(ctx, p.Config, spans, func(i int) int { return p.Start + i }, rep)
}

func (e *Engine) iterateSporadicLines(ctx context.Context, _ int, data any, rep *reporter) (string, any, error) {
	var p protocol.IterateSporadicLinesData
	if err := decodePayload(data, &p); err != nil {
		return "", nil, err
	}
	spans, err := e.selectLines(p.Lines)
	if err != nil {
		return "", nil, err
	}
	return e.iterate(ctx, p.Config, spans, func(i int) int { return p.Lines[i] }, rep)
}

// iterate reconstructs the callback, feeds it every selected line and
// returns the scope it leaves behind.
func (e *Engine) iterate(ctx context.Context, cfg protocol.IteratorConfigMessage, spans []span, index func(int) int, rep *reporter) (string, any, error) {
	eachLine, scope, err := closure.Reconstruct(e.registry, cfg)
	if err != nil {
		return "", nil, fmt.Errorf("failed to reconstruct iterator: %w", err)
	}

	rec := &closure.Record{Scope: scope}
	err = e.readLines(ctx, spans, rep, func(i int, raw []byte) error {
		rec.Raw = raw
		rec.Index = index(i)
		rec.Progress = float64(i+1) / float64(len(spans))
		return e.callEachLine(eachLine, rec)
	})
	if err != nil {
		return "", nil, err
	}

	out, _, err := closure.MarshalScope(e.registry, scope)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal scope: %w", err)
	}
	return fmt.Sprintf("iterated %d lines", len(spans)), out, nil
}

func (e *Engine) callEachLine(fn closure.EachLineFunc, rec *closure.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("eachLine panicked",
				"line", rec.Index,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%w at line %d: panic: %v", ErrEachLine, rec.Index, r)
		}
	}()
	if err := fn(rec); err != nil {
		return fmt.Errorf("%w at line %d: %v", ErrEachLine, rec.Index, err)
	}
	return nil
}
