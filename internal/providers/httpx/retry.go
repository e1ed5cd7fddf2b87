// Package httpx is the shared outbound HTTP door for every provider client.
// It owns the retry policy: transient transport failures and HTTP 429 are
// retried with exponential backoff, all other error responses fail fast.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"asset-pipeline/internal/domain"
)

const (
	// DefaultMaxRetries bounds the total number of attempts per call.
	DefaultMaxRetries = 3
	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 2048
)

// Options tunes one Do call.
type Options struct {
	// Op names the logical operation for error messages, e.g. "tripo: submit task".
	Op string
	// MaxRetries is the attempt bound; DefaultMaxRetries when <= 0.
	MaxRetries int
	// Backoff returns the sleep before retrying after the given zero-based
	// attempt. Defaults to 2^attempt seconds.
	Backoff func(attempt int) time.Duration
}

// Do executes build/send up to MaxRetries times. build must return a fresh
// request each call so bodies can be replayed. The response body is the
// caller's to close on success; on error it is always drained and closed.
//
// Classification:
//   - transport error or HTTP 429: retried; *domain.TransientError after the
//     attempt bound
//   - any other status >= 400: *domain.ClientError immediately
func Do(ctx context.Context, client *http.Client, build func() (*http.Request, error), opts Options) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", opts.Op, err)
		}
		req = req.WithContext(ctx)

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
			resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 400 {
			msg := readErrorBody(resp.Body)
			resp.Body.Close()
			return nil, &domain.ClientError{Op: opts.Op, StatusCode: resp.StatusCode, Message: msg}
		}
		return resp, nil
	}

	return nil, &domain.TransientError{Op: opts.Op, Attempts: maxRetries, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func readErrorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
