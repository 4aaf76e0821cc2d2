// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/internal/httputil"
	"github.com/pdiddy/screening-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestClaudeBackendComplete(t *testing.T) {
	var got claudeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak_test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"content":[{"type":"text","text":"{\"decision\":\"INCLUDE\"}"}]}`)
	}))
	defer ts.Close()

	b := &ClaudeBackend{ID: "claude", Version: "v1", Model: "claude-test", APIKey: "ak_test",
		BaseURL: ts.URL, MaxTokens: 256, Client: ts.Client()}

	text, err := b.Complete(context.Background(), "screen this", 42)
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"INCLUDE"}`, text)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.Equal(t, 0.0, got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "screen this", got.Messages[0].Content)
}

func TestClaudeBackendStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	}))
	defer ts.Close()

	b := &ClaudeBackend{ID: "claude", Model: "m", BaseURL: ts.URL, Client: ts.Client()}
	_, err := b.Complete(context.Background(), "p", 1)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "bad key")
}

func TestOpenAIBackendSendsSeedAndRetries(t *testing.T) {
	calls := 0
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"decision\":\"EXCLUDE\"}"}}]}`)
	}))
	defer ts.Close()

	b := &OpenAIBackend{ID: "gpt", Model: "gpt-test", APIKey: "sk_test", BaseURL: ts.URL,
		MaxRetries: 2, Client: ts.Client()}

	text, err := b.Complete(context.Background(), "screen this", 1234)
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"EXCLUDE"}`, text)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1234), got.Seed)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
}

func TestOpenAIBackendEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer ts.Close()

	b := &OpenAIBackend{ID: "gpt", Model: "m", BaseURL: ts.URL, Client: ts.Client()}
	_, err := b.Complete(context.Background(), "p", 1)
	assert.ErrorContains(t, err, "empty chat completion")
}

func TestFromConfig(t *testing.T) {
	loaded := map[string]string{"anthropic-api-key": "ak"}
	cfgs := []types.BackendConfig{
		{Kind: types.BackendAnthropic, Model: "claude-sonnet", APIKeySecret: "anthropic-api-key"},
		{ID: "local-llama", Kind: types.BackendOpenAI, Model: "llama3", Version: "3.1-8b", BaseURL: "http://localhost:11434"},
	}

	backends, err := FromConfig(cfgs, types.HTTPConfig{UserAgent: "screening-engine/test"}, loaded)
	require.NoError(t, err)
	require.Len(t, backends, 2)

	assert.Equal(t, "claude-sonnet", backends[0].ModelID())
	assert.Equal(t, "claude-sonnet", backends[0].ModelVersion())
	cb, ok := backends[0].(*ClaudeBackend)
	require.True(t, ok)
	assert.Equal(t, "ak", cb.APIKey)
	assert.Equal(t, defaultMaxTokens, cb.MaxTokens)

	assert.Equal(t, "local-llama", backends[1].ModelID())
	assert.Equal(t, "3.1-8b", backends[1].ModelVersion())
}

func TestFromConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfgs []types.BackendConfig
		want string
	}{
		{"missing model", []types.BackendConfig{{Kind: types.BackendOpenAI}}, "model is required"},
		{"duplicate id", []types.BackendConfig{{Model: "a"}, {Model: "a"}}, "duplicate model id"},
		{"missing secret", []types.BackendConfig{{Model: "a", APIKeySecret: "nope-screening-test-key"}}, "not found"},
		{"unknown kind", []types.BackendConfig{{Model: "a", Kind: "grpc"}}, "unsupported kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfgs, types.HTTPConfig{}, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
