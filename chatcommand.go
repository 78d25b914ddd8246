// Package chatcommand defines the conversation and result types shared by the
// chat-command packages. A conversation is an ordered list of turns that is
// persisted between invocations; a round ends with one chosen Suggestion that
// is handed to the shell wrapper as a Result.
package chatcommand

import (
	"fmt"
	"strings"
)

// ContextMarker is appended by the model to commands whose purpose is to
// gather more information rather than solve the task directly.
const ContextMarker = "# for context"

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one message of a conversation. Turns are never modified after
// they are appended to a session.
type Turn struct {
	Role    Role   `json:"role" toml:"role"`
	Content string `json:"content" toml:"content"`
}

// Suggestion is one cleaned candidate line from a model response.
type Suggestion struct {
	// Text is the cleaned line as shown to the user, including any
	// trailing comment.
	Text string `json:"text"`
	// IsContextRequest is true when the line carries the ContextMarker.
	IsContextRequest bool `json:"is_context_request"`
}

// NewSuggestion derives a Suggestion from a cleaned response line.
func NewSuggestion(text string) Suggestion {
	return Suggestion{
		Text:             text,
		IsContextRequest: strings.Contains(text, ContextMarker),
	}
}

// Command returns the executable part of the suggestion: everything before
// the first '#', trimmed.
func (s Suggestion) Command() string {
	cmd := s.Text
	if i := strings.IndexByte(cmd, '#'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.TrimSpace(cmd)
}

// Result is the hand-off to the external executor.
type Result struct {
	Command        string
	SessionID      int64
	ContextRequest bool
}

// NewResult builds the Result for a finalized suggestion.
func NewResult(s Suggestion, sessionID int64) Result {
	return Result{
		Command:        s.Command(),
		SessionID:      sessionID,
		ContextRequest: s.IsContextRequest,
	}
}

// String renders the result in the three-line format read by the shell
// wrapper: command, session id, context flag.
func (r Result) String() string {
	flag := 0
	if r.ContextRequest {
		flag = 1
	}
	return fmt.Sprintf("%s\n%d\n%d\n", r.Command, r.SessionID, flag)
}
