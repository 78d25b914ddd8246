package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// SDKGenerator performs completions through the official OpenAI Go SDK.
type SDKGenerator struct {
	client openai.Client
	opts   Options
}

// NewSDKGenerator creates an SDK-backed generator. The SDK takes a base URL,
// which is derived from the configured endpoint by dropping the
// /chat/completions suffix.
func NewSDKGenerator(opts Options) (*SDKGenerator, error) {
	if opts.APIKey == "" {
		return nil, chatcommand.ErrMissingAPIKey
	}
	reqOpts := []option.RequestOption{
		option.WithBaseURL(BaseURL(opts.Endpoint)),
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	return &SDKGenerator{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
	}, nil
}

// BaseURL strips the operation path from a chat completions endpoint.
func BaseURL(endpoint string) string {
	base := strings.TrimRight(endpoint, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	if base == "" {
		return "https://api.openai.com/v1"
	}
	return base + "/"
}

// Generate sends the full transcript and returns the text of the single
// completion choice.
func (g *SDKGenerator) Generate(ctx context.Context, turns []chatcommand.Turn) (string, error) {
	slog.Info("requesting suggestions", "model", g.opts.Model, "api_type", chatcommand.APITypeOpenAISDK, "turns", len(turns))

	params := openai.ChatCompletionNewParams{
		Messages:    sdkMessages(turns),
		Model:       openai.ChatModel(g.opts.Model),
		Temperature: openai.Float(g.opts.Temperature),
	}
	if g.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.opts.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			body := apiErr.RawJSON()
			if body == "" {
				body = apiErr.Message
			}
			return "", &APIError{StatusCode: apiErr.StatusCode, Body: body}
		}
		return "", fmt.Errorf("OpenAI request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("received response", "body", content)
	return content, nil
}

func sdkMessages(turns []chatcommand.Turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(turns))
	for i, t := range turns {
		switch t.Role {
		case chatcommand.RoleSystem:
			out[i] = openai.SystemMessage(t.Content)
		case chatcommand.RoleAssistant:
			out[i] = openai.AssistantMessage(t.Content)
		default:
			out[i] = openai.UserMessage(t.Content)
		}
	}
	return out
}
