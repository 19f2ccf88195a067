// Package logx is a thin structured-logging layer over zerolog.
//
// It exposes a small Logger with slog-like Field helpers, a console writer
// for interactive use, an optional JSON file sink, and an optional Discord
// channel sink that forwards warnings and errors into a designated channel
// (rate-limited, best-effort, never blocking the caller).
package logx
