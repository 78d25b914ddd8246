package chatcommand

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	defaults "github.com/mikhail-vlasenko/chat-command/default"
)

var (
	// ErrMissingRoot is returned when $CHAT_COMMAND_PATH is not set.
	ErrMissingRoot = errors.New("CHAT_COMMAND_PATH environment variable is not set; it probably should be \"~/.chat_command\"")
	// ErrMissingAPIKey is returned when no API key can be resolved.
	ErrMissingAPIKey = errors.New("API key not found; set the OPENAI_API_KEY or CHAT_COMMAND_API_KEY environment variable")
)

// Supported generation.api_type values.
const (
	APITypeChatCompletions = "chat_completions"
	APITypeResponses       = "responses"
	APITypeOpenAISDK       = "openai_sdk"
)

// Config represents the user's chat-command configuration.
type Config struct {
	Version    int              `json:"version"`
	Generation GenerationConfig `json:"generation"`
	Prompt     PromptConfig     `json:"prompt"`
}

// GenerationConfig holds settings for the completion endpoint.
type GenerationConfig struct {
	Endpoint       string  `json:"endpoint"`
	APIKey         string  `json:"api_key,omitempty"`
	APIType        string  `json:"api_type"`
	Model          string  `json:"model"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
}

// PromptConfig holds settings that shape the user turns sent to the model.
type PromptConfig struct {
	RedactCommands   *bool `json:"redact_commands,omitempty"`
	IncludeDirectory *bool `json:"include_directory,omitempty"`
}

// RootDir returns the storage root for sessions, the result file and logs.
func RootDir() (string, error) {
	dir := strings.TrimSpace(os.Getenv("CHAT_COMMAND_PATH"))
	if dir == "" {
		return "", ErrMissingRoot
	}
	return dir, nil
}

// ConfigPath returns the config file path under root.
func ConfigPath(root string) string {
	return filepath.Join(root, "config.json")
}

// PromptPath returns the custom system prompt template path under root.
func PromptPath(root string) string {
	return filepath.Join(root, "prompt.md")
}

// HistoryDir returns the directory holding persisted sessions.
func HistoryDir(root string) string {
	return filepath.Join(root, "chat_history")
}

// ResultPath returns the file read by the shell wrapper after the process exits.
func ResultPath(root string) string {
	return filepath.Join(root, "command_to_execute.txt")
}

// DirContextPath returns the directory context snapshot shared across invocations.
func DirContextPath(root string) string {
	return filepath.Join(root, "dircontext.json")
}

// LogPath returns the log file path under root.
func LogPath(root string) string {
	return filepath.Join(root, "basic.log")
}

// DefaultConfig returns the default configuration from the embedded default_config.json.
func DefaultConfig() *Config {
	var cfg Config
	if err := json.Unmarshal(defaults.DefaultConfigJSON, &cfg); err != nil {
		panic("chatcommand: invalid embedded default_config.json: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from root or returns defaults if the file does not exist.
func LoadConfig(root string) (*Config, error) {
	path := ConfigPath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Generation.Endpoint == "" {
		cfg.Generation.Endpoint = defaults.Generation.Endpoint
	}
	if cfg.Generation.APIType == "" {
		cfg.Generation.APIType = defaults.Generation.APIType
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = defaults.Generation.Model
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = defaults.Generation.MaxTokens
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = defaults.Generation.TimeoutSeconds
	}
	if cfg.Prompt.RedactCommands == nil {
		cfg.Prompt.RedactCommands = defaults.Prompt.RedactCommands
	}
	if cfg.Prompt.IncludeDirectory == nil {
		cfg.Prompt.IncludeDirectory = defaults.Prompt.IncludeDirectory
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	endpoint := ResolveEndpoint(cfg)
	switch cfg.Generation.APIType {
	case APITypeChatCompletions:
		if strings.HasSuffix(endpoint, "/responses") {
			warnings = append(warnings, "api_type is chat_completions but the endpoint looks like a responses endpoint")
		}
	case APITypeResponses:
		if strings.HasSuffix(endpoint, "/chat/completions") {
			warnings = append(warnings, "api_type is responses but the endpoint looks like a chat completions endpoint")
		}
	case APITypeOpenAISDK:
		if !strings.HasSuffix(strings.TrimRight(endpoint, "/"), "/chat/completions") {
			warnings = append(warnings, "api_type openai_sdk expects an endpoint ending in /chat/completions; the base URL is derived from it")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown api_type %q; falling back to chat_completions", cfg.Generation.APIType))
	}
	if cfg.Generation.MaxTokens > 0 && cfg.Generation.MaxTokens < 50 {
		warnings = append(warnings, "max_tokens below 50 may cut suggestions short")
	}
	if cfg.Generation.Temperature != 0 {
		warnings = append(warnings, "temperature is not 0; suggestions will not be deterministic")
	}
	if IncludeDirectoryEnabled(cfg) && !RedactCommandsEnabled(cfg) {
		warnings = append(warnings, "include_directory is on while redact_commands is off; directory details and unredacted commands are sent to the endpoint")
	}
	return warnings
}

// ResolveAPIKey returns the API key.
// Priority: $CHAT_COMMAND_API_KEY > $OPENAI_API_KEY > config value.
func ResolveAPIKey(cfg *Config) string {
	if key := os.Getenv("CHAT_COMMAND_API_KEY"); key != "" {
		return key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Generation.APIKey
	}
	return ""
}

// ResolveEndpoint returns the completion endpoint URL.
// Priority: $CHAT_COMMAND_API_URL > config value.
func ResolveEndpoint(cfg *Config) string {
	if url := os.Getenv("CHAT_COMMAND_API_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Generation.Endpoint
	}
	return ""
}

// ResolveModel returns the model identifier.
// Priority: $CHAT_COMMAND_MODEL > config value.
func ResolveModel(cfg *Config) string {
	if model := os.Getenv("CHAT_COMMAND_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Generation.Model
	}
	return ""
}

// RequestTimeout returns the bound on a single model round-trip.
func RequestTimeout(cfg *Config) time.Duration {
	if cfg == nil || cfg.Generation.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.Generation.TimeoutSeconds) * time.Second
}

// RedactCommandsEnabled reports whether commands are redacted before they are sent.
func RedactCommandsEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Prompt.RedactCommands == nil {
		return true // default true
	}
	return *cfg.Prompt.RedactCommands
}

// IncludeDirectoryEnabled reports whether the directory context fragment is added.
func IncludeDirectoryEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Prompt.IncludeDirectory == nil {
		return false
	}
	return *cfg.Prompt.IncludeDirectory
}

// CheckRequired returns an error when settings needed for a model request are missing.
func CheckRequired(cfg *Config) error {
	if ResolveAPIKey(cfg) == "" {
		return ErrMissingAPIKey
	}
	if ResolveEndpoint(cfg) == "" {
		return errors.New("completion endpoint is not configured; set CHAT_COMMAND_API_URL")
	}
	return nil
}
