// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement JSON or
// text logging with configurable log levels.
package logger
