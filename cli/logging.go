package main

import (
	"io"
	"log/slog"
	"os"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
)

// setupLogging sends logs to basic.log under root. With verbose, the level
// drops to Debug and logs are mirrored to stderr. The returned function
// closes the log file.
func setupLogging(root string, verbose bool) func() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	f, err := os.OpenFile(chatcommand.LogPath(root), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
		slog.Warn("failed to open log file, logging to stderr", "error", err)
		return func() {}
	}

	var w io.Writer = f
	if verbose {
		w = io.MultiWriter(f, os.Stderr)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return func() { f.Close() }
}
