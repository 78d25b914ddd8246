// Package prompt composes the user turns sent to the model from the
// ambient shell context and the kind of request being made.
package prompt

import "unicode/utf8"

const (
	// maxOutputLength is the longest captured output kept verbatim.
	maxOutputLength = 1000
	// ElisionMarker joins the head and tail of a truncated output.
	ElisionMarker = "\n...\n"
)

// Truncate keeps the first and last 500 characters of s when it is longer
// than 1000 characters. It is applied once, when output is ingested.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxOutputLength {
		return s
	}
	r := []rune(s)
	half := maxOutputLength / 2
	return string(r[:half]) + ElisionMarker + string(r[len(r)-half:])
}

// Input is the raw ambient context handed over by the shell wrapper.
type Input struct {
	// LastCommand and LastOutput are the last command run in the shell and
	// what it printed.
	LastCommand string
	LastOutput  string
	// PriorChatCommand and PriorChatOutput are the command this tool handed
	// to the shell in the previous round and its output.
	PriorChatCommand string
	PriorChatOutput  string
	// Clipboard is nil unless clipboard content was requested.
	Clipboard *string
	// Redact masks values typed into variable assignments in the commands.
	Redact bool
}

// RequestContext is the ambient, non-persisted context of one invocation.
type RequestContext struct {
	LastCommand      string
	LastOutput       string
	PriorChatCommand string
	PriorChatOutput  string
	// SuppressLastCommandMention is set when the last shell command is the
	// one this tool suggested and it printed nothing new: it is already
	// part of the history.
	SuppressLastCommandMention bool
	ClipboardText              *string
}

// NewRequestContext truncates outputs and derives the suppression flag.
func NewRequestContext(in Input) RequestContext {
	rc := RequestContext{
		LastCommand:      in.LastCommand,
		LastOutput:       Truncate(in.LastOutput),
		PriorChatCommand: in.PriorChatCommand,
		PriorChatOutput:  Truncate(in.PriorChatOutput),
		ClipboardText:    in.Clipboard,
	}
	rc.SuppressLastCommandMention = rc.PriorChatCommand == rc.LastCommand && rc.LastOutput == ""

	if in.Redact {
		rc.LastCommand = RedactCommand(rc.LastCommand)
		rc.PriorChatCommand = RedactCommand(rc.PriorChatCommand)
	}
	return rc
}
