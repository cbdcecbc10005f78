package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phrazzld/txtreader/internal/api"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (app *application) serve(ctx context.Context) error {
	handler := api.NewReaderHandler(app.reader, requestTimeout, app.logger)
	server := &http.Server{
		Addr:              app.config.Server.Addr,
		Handler:           api.NewRouter(handler, app.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	app.logger.Info("server shutdown completed")
	return nil
}
