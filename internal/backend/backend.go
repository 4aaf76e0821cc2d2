// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend implements the inference backends the orchestrator fans
// prompts out to. A backend turns a prompt into raw completion text; parsing
// the text into a screening vote is the orchestrator's job.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/screening-engine/internal/secrets"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// Backend is one externally hosted model. Complete may block on the network
// and must honor ctx cancellation. The same seed is passed to every backend
// of a run; backends whose API has no seed parameter run at temperature 0.
type Backend interface {
	ModelID() string
	ModelVersion() string
	Complete(ctx context.Context, prompt string, seed int64) (string, error)
}

// StatusError reports a non-success HTTP status from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

const (
	defaultMaxTokens   = 1024
	defaultHTTPTimeout = 90 * time.Second
	maxErrorBody       = 512
)

// FromConfig builds the configured backends in order. API keys are resolved
// through the secrets map (with environment fallback); a backend whose key
// secret is configured but missing is rejected.
func FromConfig(cfgs []types.BackendConfig, httpCfg types.HTTPConfig, loaded map[string]string) ([]Backend, error) {
	timeout := httpCfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &http.Client{Timeout: timeout}

	backends := make([]Backend, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.Model == "" {
			return nil, fmt.Errorf("backend %d: model is required", i)
		}
		id := cfg.ID
		if id == "" {
			id = cfg.Model
		}
		if seen[id] {
			return nil, fmt.Errorf("backend %d: duplicate model id %q", i, id)
		}
		seen[id] = true

		version := cfg.Version
		if version == "" {
			version = cfg.Model
		}
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = defaultMaxTokens
		}

		var apiKey string
		if cfg.APIKeySecret != "" {
			v, ok := secrets.Lookup(loaded, cfg.APIKeySecret)
			if !ok {
				return nil, fmt.Errorf("backend %q: secret %q not found", id, cfg.APIKeySecret)
			}
			apiKey = v
		}

		switch cfg.Kind {
		case types.BackendAnthropic:
			backends = append(backends, &ClaudeBackend{
				ID:         id,
				Version:    version,
				Model:      cfg.Model,
				APIKey:     apiKey,
				BaseURL:    cfg.BaseURL,
				MaxTokens:  maxTokens,
				MaxRetries: cfg.MaxRetries,
				UserAgent:  httpCfg.UserAgent,
				Client:     client,
			})
		case types.BackendOpenAI, "":
			backends = append(backends, &OpenAIBackend{
				ID:         id,
				Version:    version,
				Model:      cfg.Model,
				APIKey:     apiKey,
				BaseURL:    cfg.BaseURL,
				MaxTokens:  maxTokens,
				MaxRetries: cfg.MaxRetries,
				UserAgent:  httpCfg.UserAgent,
				Client:     client,
			})
		default:
			return nil, fmt.Errorf("backend %q: unsupported kind %q", id, cfg.Kind)
		}
	}
	return backends, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
