// Package session holds the in-memory conversation for one invocation and
// persists it between invocations.
package session

import chatcommand "github.com/mikhail-vlasenko/chat-command"

// Session is the live transcript of one conversation. When a system prompt
// is set, turn 0 is always the system turn; it is never persisted.
type Session struct {
	ID    int64
	turns []chatcommand.Turn
}

// New creates a session from a system prompt and previously persisted turns.
// An empty systemPrompt leaves the transcript without a system turn.
func New(id int64, systemPrompt string, history []chatcommand.Turn) *Session {
	turns := make([]chatcommand.Turn, 0, len(history)+3)
	if systemPrompt != "" {
		turns = append(turns, chatcommand.Turn{Role: chatcommand.RoleSystem, Content: systemPrompt})
	}
	turns = append(turns, history...)
	return &Session{ID: id, turns: turns}
}

// Turns returns a copy of the full transcript, system turn included.
func (s *Session) Turns() []chatcommand.Turn {
	out := make([]chatcommand.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns, system turn included.
func (s *Session) Len() int { return len(s.turns) }

// Append adds a turn to the end of the transcript.
func (s *Session) Append(role chatcommand.Role, content string) {
	s.turns = append(s.turns, chatcommand.Turn{Role: role, Content: content})
}

// Last returns the final turn, if any.
func (s *Session) Last() (chatcommand.Turn, bool) {
	if len(s.turns) == 0 {
		return chatcommand.Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// PopPendingUser removes and returns the final turn when it is a user turn
// that never received a reply.
func (s *Session) PopPendingUser() (string, bool) {
	last, ok := s.Last()
	if !ok || last.Role != chatcommand.RoleUser {
		return "", false
	}
	s.turns = s.turns[:len(s.turns)-1]
	return last.Content, true
}

// Persisted returns the turns that are written to storage: everything but
// the system turn.
func (s *Session) Persisted() []chatcommand.Turn {
	turns := s.turns
	if len(turns) > 0 && turns[0].Role == chatcommand.RoleSystem {
		turns = turns[1:]
	}
	out := make([]chatcommand.Turn, len(turns))
	copy(out, turns)
	return out
}
