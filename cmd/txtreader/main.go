// Package main implements the txtreader command, which reads large text
// files through a background worker. It runs one-shot commands or serves
// the reader over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], afero.NewOsFs(), os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "txtreader: %v\n", err)
		stop()
		os.Exit(1)
	}
}
