// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/screening-engine/internal/httputil"
)

// openAIBaseURL is the default chat completions host. Package-level var for
// test substitution.
var openAIBaseURL = "https://api.openai.com"

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint. vLLM,
// Ollama and most hosted gateways accept the same request shape.
type OpenAIBackend struct {
	ID         string
	Version    string
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int
	MaxRetries int
	UserAgent  string
	Client     *http.Client
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature"`
	Seed           int64          `json:"seed"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ModelID returns the configured model id.
func (o *OpenAIBackend) ModelID() string { return o.ID }

// ModelVersion returns the version string recorded in audit entries.
func (o *OpenAIBackend) ModelVersion() string { return o.Version }

// Complete posts a single-message chat completion with the run seed and
// JSON response mode.
func (o *OpenAIBackend) Complete(ctx context.Context, prompt string, seed int64) (string, error) {
	reqBody := chatRequest{
		Model:          o.Model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:      o.MaxTokens,
		Temperature:    0,
		Seed:           seed,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	base := openAIBaseURL
	if o.BaseURL != "" {
		base = o.BaseURL
	}
	url := strings.TrimRight(base, "/") + "/v1/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, o.Client, req, o.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", o.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: o.ID, StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty chat completion from %s", o.ID)
	}
	return cr.Choices[0].Message.Content, nil
}
