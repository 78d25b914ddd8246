package generate

import (
	"errors"
	"log/slog"
	"strings"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
)

// ErrNoSuggestions is returned when a reply holds no usable command line.
var ErrNoSuggestions = errors.New("the model response contained no command suggestions")

// enumeration is the set of characters models use to number list items.
const enumeration = "0123456789. -"

// CleanSuggestions turns raw reply lines into candidate commands, in order.
//
// A line in the legacy "# for context <cmd>" form is rewritten to
// "<cmd> # for context"; a bare context marker line is then joined onto the
// line before it. Blank lines, code fences, comments and a bare "or"
// are dropped, and list numbering is stripped from every line that does not
// start with "./".
func CleanSuggestions(lines []string) []string {
	lines = append([]string(nil), lines...)

	for i := range lines {
		lines[i] = migrateLegacyMarker(lines[i])
	}
	for i := 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), chatcommand.ContextMarker) {
			lines[i-1] += " " + strings.TrimSpace(lines[i])
			lines[i] = ""
		}
	}

	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" ||
			strings.HasPrefix(line, "```") ||
			strings.HasPrefix(line, "#") ||
			strings.EqualFold(line, "or") {
			continue
		}
		if !strings.HasPrefix(line, "./") {
			line = strings.TrimLeft(line, enumeration)
		}
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return cleaned
}

// migrateLegacyMarker rewrites "# for context <cmd>" to "<cmd> # for context".
func migrateLegacyMarker(line string) string {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, chatcommand.ContextMarker)
	if !ok {
		return line
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return line
	}
	return rest + " " + chatcommand.ContextMarker
}

// ParseSuggestions splits a raw reply into lines, cleans them and derives
// a Suggestion per surviving line.
func ParseSuggestions(raw string) ([]chatcommand.Suggestion, error) {
	cleaned := CleanSuggestions(strings.Split(raw, "\n"))
	if len(cleaned) == 0 {
		slog.Warn("no suggestions in model response", "raw", raw)
		return nil, ErrNoSuggestions
	}
	out := make([]chatcommand.Suggestion, len(cleaned))
	for i, line := range cleaned {
		out[i] = chatcommand.NewSuggestion(line)
	}
	slog.Info("cleaned suggestions", "suggestions", cleaned)
	return out, nil
}
