package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/phrazzld/txtreader/internal/config"
	"github.com/phrazzld/txtreader/internal/events"
	"github.com/phrazzld/txtreader/internal/linefuncs"
	"github.com/phrazzld/txtreader/internal/platform/logger"
	"github.com/phrazzld/txtreader/internal/txtreader"
	"github.com/phrazzld/txtreader/internal/worker"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const usage = `usage: txtreader [flags] <command> [args]

commands:
  count <file>                 print the number of lines
  lines <file> <start> <count> print count lines starting at start
  sniff <file> <count>         print the first lines without loading the file
  grep <needle> <file>         print matching lines with their line numbers
  serve                        serve the reader over HTTP

flags:
`

var errUsage = errors.New("invalid usage")

// application holds the dependencies shared by every command.
type application struct {
	config *config.Config
	logger *slog.Logger
	fs     afero.Fs
	reader *txtreader.Reader
	out    io.Writer
}

// grepOptions are the flags of the grep command.
type grepOptions struct {
	mode  string
	limit int
}

func run(ctx context.Context, args []string, fs afero.Fs, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("txtreader", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	config.RegisterFlags(flags)

	var grep grepOptions
	flags.StringVar(&grep.mode, "mode", "contains", "grep matcher: contains, prefix or fold")
	flags.IntVar(&grep.limit, "limit", 0, "maximum matches printed by grep, 0 prints all")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errUsage
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := newApplication(cfg, fs, stdout, stderr)
	if err != nil {
		return err
	}
	defer app.cleanup()

	command, rest := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "count":
		if len(rest) != 1 {
			return fmt.Errorf("%w: count takes <file>", errUsage)
		}
		return app.count(ctx, rest[0])
	case "lines":
		if len(rest) != 3 {
			return fmt.Errorf("%w: lines takes <file> <start> <count>", errUsage)
		}
		start, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("%w: start must be an integer", errUsage)
		}
		count, err := strconv.Atoi(rest[2])
		if err != nil {
			return fmt.Errorf("%w: count must be an integer", errUsage)
		}
		return app.lines(ctx, rest[0], start, count)
	case "sniff":
		if len(rest) != 2 {
			return fmt.Errorf("%w: sniff takes <file> <count>", errUsage)
		}
		count, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("%w: count must be an integer", errUsage)
		}
		return app.sniff(ctx, rest[0], count)
	case "grep":
		if len(rest) != 2 {
			return fmt.Errorf("%w: grep takes <needle> <file>", errUsage)
		}
		return app.grep(ctx, rest[0], rest[1], grep)
	case "serve":
		if len(rest) != 0 {
			return fmt.Errorf("%w: serve takes no arguments", errUsage)
		}
		return app.serve(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// newApplication wires the logger, the line function registry and the
// reader from cfg. Logs go to stderr so command output stays clean.
func newApplication(cfg *config.Config, fs afero.Fs, stdout, stderr io.Writer) (*application, error) {
	log, err := logger.Setup(cfg.Log, stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	registry, err := linefuncs.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to register line functions: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(events.NewLogHandler(log))

	opts := txtreader.DefaultOptions()
	opts.Codec = cfg.Worker.Codec
	opts.Worker = worker.Config{InboxSize: cfg.Worker.InboxSize}
	opts.Worker.Engine.ChunkSize = cfg.Worker.ChunkSize
	opts.Worker.Engine.Diagnostics = cfg.Worker.Diagnostics
	opts.Scheduler.HistoryLimit = cfg.Scheduler.HistoryLimit
	opts.MaxScopeDepth = cfg.Closure.MaxScopeDepth
	opts.Emitter = emitter

	reader, err := txtreader.Open(fs, registry, opts, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start reader: %w", err)
	}
	// Outstanding tasks are already rejected when this runs.
	reader.Scheduler().SetFatalHandler(func(err error) {
		log.Error("reader halted", "error", err)
	})

	log.Debug("application initialized",
		"codec", cfg.Worker.Codec,
		"chunk_size", cfg.Worker.ChunkSize,
		"max_scope_depth", cfg.Closure.MaxScopeDepth)

	return &application{
		config: cfg,
		logger: log,
		fs:     fs,
		reader: reader,
		out:    stdout,
	}, nil
}

// cleanup stops the reader and its worker.
func (app *application) cleanup() {
	if err := app.reader.Close(); err != nil {
		app.logger.Error("error closing reader", "error", err)
	}
	app.logger.Debug("application shutdown completed")
}
