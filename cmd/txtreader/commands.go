package main

import (
	"context"
	"fmt"

	"github.com/phrazzld/txtreader/internal/closure"
	"github.com/phrazzld/txtreader/internal/linefuncs"
	"github.com/phrazzld/txtreader/internal/protocol"
	"github.com/phrazzld/txtreader/internal/txtreader"
)

func (app *application) load(ctx context.Context, path string) (protocol.LoadFileResult, error) {
	t := app.reader.LoadFile(path).Progress(func(percent float64) {
		app.logger.Debug("loading", "path", path, "percent", percent)
	})
	return txtreader.Await[protocol.LoadFileResult](ctx, t)
}

func (app *application) count(ctx context.Context, path string) error {
	result, err := app.load(ctx, path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, result.LineCount)
	return err
}

func (app *application) lines(ctx context.Context, path string, start, count int) error {
	if _, err := app.load(ctx, path); err != nil {
		return err
	}
	lines, err := txtreader.Await[[]string](ctx, app.reader.GetLines(start, count))
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(app.out, line); err != nil {
			return err
		}
	}
	return nil
}

func (app *application) sniff(ctx context.Context, path string, count int) error {
	lines, err := txtreader.Await[[]string](ctx, app.reader.SniffLines(path, count))
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(app.out, line); err != nil {
			return err
		}
	}
	return nil
}

// searchResult is the scope returned by a collectMatches iteration.
type searchResult struct {
	Total   int `json:"total"`
	Matches []struct {
		Line int    `json:"line"`
		Text string `json:"text"`
	} `json:"matches"`
}

func (app *application) grep(ctx context.Context, needle, path string, opts grepOptions) error {
	match, ok := linefuncs.Matcher(opts.mode)
	if !ok {
		return fmt.Errorf("%w: unknown grep mode %q", errUsage, opts.mode)
	}
	if _, err := app.load(ctx, path); err != nil {
		return err
	}

	cfg := closure.IteratorConfig{
		EachLine: linefuncs.CollectMatches,
		Scope: map[string]any{
			linefuncs.KeyNeedle: needle,
			linefuncs.KeyLimit:  opts.limit,
			linefuncs.KeyMatch:  match,
		},
	}
	result, err := txtreader.Await[searchResult](ctx, app.reader.IterateLines(cfg))
	if err != nil {
		return err
	}
	for _, m := range result.Matches {
		if _, err := fmt.Fprintf(app.out, "%d:%s\n", m.Line, m.Text); err != nil {
			return err
		}
	}
	app.logger.Info("search finished", "needle", needle, "total", result.Total, "printed", len(result.Matches))
	return nil
}
