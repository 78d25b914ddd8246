package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
)

func TestLoadFreshSkipsStorage(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	// A corrupt file must not matter when the session is fresh.
	os.MkdirAll(chatcommand.HistoryDir(root), 0700)
	os.WriteFile(store.Path(5), []byte("garbage"), 0600)

	turns, err := store.Load(5, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty transcript, got %d turns", len(turns))
	}
}

func TestLoadMissingReturnsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	turns, err := store.Load(1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty transcript, got %d turns", len(turns))
	}
}

func TestSaveLoadExcludesSystemTurn(t *testing.T) {
	store := NewStore(t.TempDir())
	sess := New(1700000000, "system prompt", nil)
	sess.Append(chatcommand.RoleUser, "Please fix this shell command:\ncd mxai")
	sess.Append(chatcommand.RoleAssistant, "ls # for context\ncd Mxai")

	if err := store.Save(sess); err != nil {
		t.Fatal(err)
	}

	turns, err := store.Load(1700000000, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != chatcommand.RoleUser || turns[1].Role != chatcommand.RoleAssistant {
		t.Errorf("unexpected roles: %q, %q", turns[0].Role, turns[1].Role)
	}
	if turns[1].Content != "ls # for context\ncd Mxai" {
		t.Errorf("unexpected assistant content %q", turns[1].Content)
	}

	data, err := os.ReadFile(store.Path(1700000000))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "system prompt") {
		t.Error("system turn must not be persisted")
	}
	if !strings.Contains(string(data), `"version": 1`) {
		t.Errorf("expected version field, got %s", data)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())
	sess := New(3, "sys", nil)
	sess.Append(chatcommand.RoleUser, "first")
	sess.Append(chatcommand.RoleAssistant, "a")
	if err := store.Save(sess); err != nil {
		t.Fatal(err)
	}

	next := New(3, "sys", nil)
	next.Append(chatcommand.RoleUser, "only")
	if err := store.Save(next); err != nil {
		t.Fatal(err)
	}

	turns, err := store.Load(3, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 || turns[0].Content != "only" {
		t.Errorf("expected overwritten transcript, got %+v", turns)
	}
}

func TestSaveRejectsConsecutiveUserTurns(t *testing.T) {
	store := NewStore(t.TempDir())
	sess := New(4, "sys", nil)
	sess.Append(chatcommand.RoleUser, "a")
	sess.Append(chatcommand.RoleUser, "b")
	if err := store.Save(sess); !errors.Is(err, ErrConsecutiveUser) {
		t.Fatalf("expected ErrConsecutiveUser, got %v", err)
	}
	if store.Exists(4) {
		t.Error("nothing should be written for an invalid transcript")
	}
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", "\x80\x04\x95", ErrCorrupt},
		{"empty file", "", ErrCorrupt},
		{"system turn", `{"version":1,"session_id":9,"turns":[{"role":"system","content":"x"}]}`, ErrCorrupt},
		{"unknown role", `{"version":1,"session_id":9,"turns":[{"role":"tool","content":"x"}]}`, ErrCorrupt},
		{"future version", `{"version":2,"session_id":9,"turns":[]}`, ErrUnsupportedVersion},
		{"missing version", `{"session_id":9,"turns":[]}`, ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			store := NewStore(root)
			os.MkdirAll(chatcommand.HistoryDir(root), 0700)
			if err := os.WriteFile(store.Path(9), []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Load(9, false); !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadLegacyPickle(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	dir := chatcommand.HistoryDir(root)
	os.MkdirAll(dir, 0700)
	if err := os.WriteFile(filepath.Join(dir, "12.pkl"), []byte("\x80\x04"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(12, false); !errors.Is(err, ErrLegacyFormat) {
		t.Fatalf("expected ErrLegacyFormat, got %v", err)
	}
}

func TestSessionPopPendingUser(t *testing.T) {
	sess := New(1, "sys", []chatcommand.Turn{
		{Role: chatcommand.RoleUser, Content: "q"},
		{Role: chatcommand.RoleAssistant, Content: "a"},
	})
	if _, ok := sess.PopPendingUser(); ok {
		t.Fatal("assistant turn must not be popped")
	}

	sess.Append(chatcommand.RoleUser, "pending")
	content, ok := sess.PopPendingUser()
	if !ok || content != "pending" {
		t.Fatalf("PopPendingUser() = %q, %v", content, ok)
	}
	if sess.Len() != 3 {
		t.Errorf("expected 3 turns after pop, got %d", sess.Len())
	}
}

func TestSessionSystemTurnFirst(t *testing.T) {
	sess := New(1, "sys", []chatcommand.Turn{{Role: chatcommand.RoleUser, Content: "q"}})
	turns := sess.Turns()
	if turns[0].Role != chatcommand.RoleSystem {
		t.Errorf("expected system turn first, got %q", turns[0].Role)
	}
	if len(sess.Persisted()) != 1 {
		t.Errorf("expected 1 persisted turn, got %d", len(sess.Persisted()))
	}

	bare := New(1, "", nil)
	if _, ok := bare.Last(); ok {
		t.Error("expected empty transcript without system prompt")
	}
}
