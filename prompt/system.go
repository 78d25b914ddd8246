package prompt

import (
	"log/slog"
	"os"
	"strings"
	"text/template"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
	defaults "github.com/mikhail-vlasenko/chat-command/default"
)

// SystemData holds the data passed to the system prompt template.
type SystemData struct {
	MaxSuggestions int
	ContextMarker  string
}

// LoadCustomPrompt reads a user system prompt template.
// Returns empty string if no custom prompt exists.
func LoadCustomPrompt(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", path)
	return string(data)
}

// SystemPrompt renders the system turn from custom, or from the embedded
// default when custom is empty or fails to render. The system turn is never
// persisted, so template changes apply to old sessions as well.
func SystemPrompt(custom string) string {
	data := SystemData{
		MaxSuggestions: MaxSuggestions,
		ContextMarker:  chatcommand.ContextMarker,
	}

	if custom != "" {
		out, err := render(custom, data)
		if err == nil {
			return out
		}
		slog.Warn("failed to render custom prompt, falling back to default", "error", err)
	}

	out, err := render(defaults.DefaultPrompt, data)
	if err != nil {
		panic("prompt: invalid embedded default_prompt.md: " + err.Error())
	}
	return out
}

func render(src string, data SystemData) (string, error) {
	t, err := template.New("system").Option("missingkey=error").Parse(src)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
