// Package result hands the chosen command to the shell wrapper.
package result

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	chatcommand "github.com/mikhail-vlasenko/chat-command"
)

// Writer writes results to a file read by the shell wrapper once the
// process exits. The file is replaced atomically, so an interrupted write
// never leaves a partial result behind.
type Writer struct {
	path string
}

// NewWriter creates a writer for path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the result file path.
func (w *Writer) Path() string { return w.path }

// Write replaces the result file with r: command, session id and context
// flag, one per line.
func (w *Writer) Write(r chatcommand.Result) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0700); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	if err := renameio.WriteFile(w.path, []byte(r.String()), 0600); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	slog.Info("command written to file", "path", w.path, "command", r.Command)
	return nil
}
