package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio"
	chatcommand "github.com/mikhail-vlasenko/chat-command"
)

// FormatVersion is the version written into every session file.
const FormatVersion = 1

var (
	// ErrCorrupt is returned when a session file cannot be decoded or holds invalid turns.
	ErrCorrupt = errors.New("session file is corrupt")
	// ErrUnsupportedVersion is returned for files written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported session file version")
	// ErrLegacyFormat is returned when only a pickle (.pkl) session file exists.
	ErrLegacyFormat = errors.New("session was stored in the legacy pickle format")
	// ErrConsecutiveUser is returned by Save when two user turns are adjacent.
	ErrConsecutiveUser = errors.New("transcript has two consecutive user turns")
)

type sessionFile struct {
	Version   int                `json:"version"`
	SessionID int64              `json:"session_id"`
	Turns     []chatcommand.Turn `json:"turns"`
}

// Store reads and writes one JSON file per session id. There is no locking:
// concurrent writers to the same id race and the last Save wins.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the chat history directory under root.
func NewStore(root string) *Store {
	return &Store{dir: chatcommand.HistoryDir(root)}
}

// Path returns the file holding the given session.
func (s *Store) Path(id int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(id, 10)+".json")
}

func (s *Store) legacyPath(id int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(id, 10)+".pkl")
}

// Exists reports whether a persisted entry exists for id.
func (s *Store) Exists(id int64) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Load returns the persisted turns for id, excluding the system turn. A fresh
// session, or one with no persisted entry, yields an empty transcript.
func (s *Store) Load(id int64, fresh bool) ([]chatcommand.Turn, error) {
	if fresh {
		return nil, nil
	}

	path := s.Path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if _, lerr := os.Stat(s.legacyPath(id)); lerr == nil {
				return nil, fmt.Errorf("%w: %s", ErrLegacyFormat, s.legacyPath(id))
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if f.Version > FormatVersion || f.Version < 1 {
		return nil, fmt.Errorf("%w: %s has version %d", ErrUnsupportedVersion, path, f.Version)
	}
	for i, turn := range f.Turns {
		if turn.Role != chatcommand.RoleUser && turn.Role != chatcommand.RoleAssistant {
			return nil, fmt.Errorf("%w: %s: turn %d has role %q", ErrCorrupt, path, i, turn.Role)
		}
	}

	slog.Info("chat history loaded", "path", path, "turns", len(f.Turns))
	return f.Turns, nil
}

// Save overwrites the persisted entry for the session with its transcript,
// excluding the system turn. The file is replaced atomically.
func (s *Store) Save(sess *Session) error {
	turns := sess.Persisted()
	for i := 1; i < len(turns); i++ {
		if turns[i].Role == chatcommand.RoleUser && turns[i-1].Role == chatcommand.RoleUser {
			return fmt.Errorf("session %d: %w at turn %d", sess.ID, ErrConsecutiveUser, i)
		}
	}

	// 0700 - conversation history may contain command output
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create chat history directory: %w", err)
	}

	data, err := json.MarshalIndent(sessionFile{
		Version:   FormatVersion,
		SessionID: sess.ID,
		Turns:     turns,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := s.Path(sess.ID)
	if err := renameio.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	slog.Info("chat history written", "path", path, "turns", len(turns))
	return nil
}
