// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the inference backends.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// rate-limit responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// RetryMaxDelay caps a single backoff wait, including server-provided
// Retry-After values.
var RetryMaxDelay = 60 * time.Second

const defaultMaxRetries = 5

// statusOverloaded is returned by some LLM providers when capacity is exhausted.
const statusOverloaded = 529

// Retryable reports whether a status code signals rate limiting or overload.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == statusOverloaded
}

// DoWithRetry executes an HTTP request and retries on rate-limit responses
// (429, 529) with exponential backoff. The delay starts at RetryBaseDelay and
// doubles each attempt, capped at RetryMaxDelay. A Retry-After header given in
// seconds replaces the computed delay.
//
// When maxRetries is 0 the default (5) is used. Request bodies are replayed
// through req.GetBody, so POST requests built with http.NewRequestWithContext
// over a bytes reader retry safely. If the context is cancelled during a
// backoff wait the function returns ctx.Err(). After exhausting retries the
// last rate-limit response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := backoffFor(attempt, resp.Header.Get("Retry-After"))
		slog.Debug("rate limited, backing off",
			"url", req.URL.Redacted(), "status", resp.StatusCode,
			"backoff", backoff, "attempt", attempt+1, "max_retries", maxRetries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// backoffFor returns the wait before the next attempt.
func backoffFor(attempt int, retryAfter string) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		backoff = time.Duration(secs) * time.Second
	}
	if backoff > RetryMaxDelay {
		backoff = RetryMaxDelay
	}
	return backoff
}
