package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
)

// Generator performs one completion request per call against an
// OpenAI-compatible HTTP API. Failed requests are never retried.
type Generator struct {
	opts   Options
	client *http.Client
}

// NewGenerator creates a generator from opts.
func NewGenerator(opts Options) *Generator {
	return &Generator{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Generate sends the full transcript and returns the text of the single
// completion choice.
func (g *Generator) Generate(ctx context.Context, turns []chatcommand.Turn) (string, error) {
	slog.Info("requesting suggestions", "model", g.opts.Model, "api_type", g.opts.APIType, "turns", len(turns))
	if g.opts.APIType == chatcommand.APITypeResponses {
		return g.generateResponses(ctx, turns)
	}
	return g.generateChatCompletions(ctx, turns)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func messages(turns []chatcommand.Turn) []message {
	out := make([]message, len(turns))
	for i, t := range turns {
		out[i] = message{Role: string(t.Role), Content: t.Content}
	}
	return out
}

type errorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// --- Chat Completions API ---

type chatCompletionsRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *errorPayload `json:"error,omitempty"`
}

func (g *Generator) generateChatCompletions(ctx context.Context, turns []chatcommand.Turn) (string, error) {
	body, err := g.post(ctx, chatCompletionsRequest{
		Model:       g.opts.Model,
		Messages:    messages(turns),
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

// --- Responses API ---

type responsesRequest struct {
	Model       string    `json:"model"`
	Input       []message `json:"input"`
	MaxTokens   int       `json:"max_output_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Error *errorPayload `json:"error,omitempty"`
}

func (g *Generator) generateResponses(ctx context.Context, turns []chatcommand.Turn) (string, error) {
	body, err := g.post(ctx, responsesRequest{
		Model:       g.opts.Model,
		Input:       messages(turns),
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	var result responsesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	for _, out := range result.Output {
		if out.Type != "message" {
			continue
		}
		for _, c := range out.Content {
			if c.Type == "output_text" {
				return c.Text, nil
			}
		}
	}
	return "", errors.New("no text content in response")
}

// post sends req as JSON to the endpoint and returns the response body.
// A non-200 status yields an *APIError carrying the body.
func (g *Generator) post(ctx context.Context, req any) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	slog.Debug("outgoing request", "endpoint", g.opts.Endpoint, "body", string(data))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.opts.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.opts.APIKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	slog.Debug("received response", "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
