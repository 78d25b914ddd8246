package prompt

import (
	"fmt"
	"strings"

	"github.com/mikhail-vlasenko/chat-command/session"
)

// MaxSuggestions is the number of variants the model may offer per reply.
const MaxSuggestions = 3

// DirContext supplies an optional description of the working directory.
type DirContext interface {
	Fragment() string
}

// Builder composes user turns for a session.
type Builder struct {
	rc  RequestContext
	dir DirContext
}

// NewBuilder creates a builder. dir may be nil to leave out directory context.
func NewBuilder(rc RequestContext, dir DirContext) *Builder {
	return &Builder{rc: rc, dir: dir}
}

// Context returns the request context the builder was created with.
func (b *Builder) Context() RequestContext { return b.rc }

// Build returns the body of the next user turn for kind k. If the session
// ends with a user turn that never got a reply, that turn is removed from s
// and its content is carried over at the start of the body. Clipboard content
// is attached to the first body built only.
func (b *Builder) Build(s *session.Session, k Kind) (string, error) {
	var sb strings.Builder
	if pending, ok := s.PopPendingUser(); ok {
		sb.WriteString(pending)
		sb.WriteString("\n")
	}

	switch k := k.(type) {
	case FixCommand:
		b.writePriorChat(&sb)
		if b.rc.SuppressLastCommandMention {
			sb.WriteString("Something still went wrong.")
		} else {
			sb.WriteString("Please fix this shell command:")
			fmt.Fprintf(&sb, "\n%s", b.rc.LastCommand)
			fmt.Fprintf(&sb, "\nThis command's current output:\n%s\nend of output.", b.rc.LastOutput)
		}
		b.writeDirectory(&sb)
		b.writeClipboard(&sb)
		sb.WriteString("\nSuggest a command to fix the issue.")

	case SuggestFromText:
		b.writePriorChat(&sb)
		fmt.Fprintf(&sb, "I want to do the following: %s", k.Goal)
		if !b.rc.SuppressLastCommandMention {
			fmt.Fprintf(&sb, "\nHere is the last executed command (it may not be helpful to this request): %s", b.rc.LastCommand)
			fmt.Fprintf(&sb, "\nOutput of the last command (may also not be helpful):\n%s\nend of output.", b.rc.LastOutput)
		}
		b.writeDirectory(&sb)
		b.writeClipboard(&sb)
		sb.WriteString("\nIf the provided information is enough, suggest a command to achieve the goal.")
		sb.WriteString("\nOtherwise, suggest a command that can provide the necessary context.")

	case AdditionalInstructions:
		// nothing ran since the last request, so the shell context is not repeated
		sb.WriteString("I do not want to execute any of these commands. Here are some additional instructions:")
		fmt.Fprintf(&sb, "\n%s", k.Text)
		b.writeClipboard(&sb)
		fmt.Fprintf(&sb, "\nConsidering this, suggest up to %d commands that would be helpful.", MaxSuggestions)

	case ReceivedContext:
		b.writePriorChat(&sb)
		sb.WriteString("Given this new context, continue solving the task.")
		b.writeDirectory(&sb)
		b.writeClipboard(&sb)

	default:
		return "", fmt.Errorf("unknown request kind %T", k)
	}

	return sb.String(), nil
}

func (b *Builder) writePriorChat(sb *strings.Builder) {
	if b.rc.PriorChatCommand == "" {
		return
	}
	fmt.Fprintf(sb, "I executed %s", b.rc.PriorChatCommand)
	fmt.Fprintf(sb, "\nThe output was:\n%s\nend of output.\n", b.rc.PriorChatOutput)
}

func (b *Builder) writeDirectory(sb *strings.Builder) {
	if b.dir == nil {
		return
	}
	if frag := b.dir.Fragment(); frag != "" {
		sb.WriteString("\n")
		sb.WriteString(frag)
	}
}

func (b *Builder) writeClipboard(sb *strings.Builder) {
	if b.rc.ClipboardText == nil {
		return
	}
	fmt.Fprintf(sb, "\nClipboard content that might be helpful:\n%s\nend of clipboard content.", *b.rc.ClipboardText)
	b.rc.ClipboardText = nil
}
