package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"asset-pipeline/internal/domain"
)

// scriptedTransport returns the queued responses (or errors) in order,
// counting invocations.
type scriptedTransport struct {
	calls     int
	responses []scriptedStep
}

type scriptedStep struct {
	status int
	err    error
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	step := s.responses[s.calls%len(s.responses)]
	if s.calls < len(s.responses) {
		step = s.responses[s.calls]
	}
	s.calls++
	if step.err != nil {
		return nil, step.err
	}
	return &http.Response{
		StatusCode: step.status,
		Body:       io.NopCloser(strings.NewReader("body")),
	}, nil
}

func noBackoff(int) time.Duration { return 0 }

func buildGet(t *testing.T) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, "https://provider.example.com/task", nil)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedStep{
		{status: http.StatusTooManyRequests},
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK},
	}}
	client := &http.Client{Transport: transport}

	resp, err := Do(context.Background(), client, buildGet(t), Options{Op: "test", MaxRetries: 3, Backoff: noBackoff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if transport.calls != 3 {
		t.Fatalf("calls = %d, want 3 (k failures + 1 success)", transport.calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedStep{
		{status: http.StatusTooManyRequests},
		{status: http.StatusTooManyRequests},
		{status: http.StatusTooManyRequests},
	}}
	client := &http.Client{Transport: transport}

	_, err := Do(context.Background(), client, buildGet(t), Options{Op: "test", MaxRetries: 3, Backoff: noBackoff})
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	var transient *domain.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("error type = %T, want *domain.TransientError", err)
	}
	if transient.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", transient.Attempts)
	}
	if transport.calls != 3 {
		t.Fatalf("calls = %d, want exactly 3", transport.calls)
	}
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedStep{
		{status: http.StatusNotFound},
	}}
	client := &http.Client{Transport: transport}

	_, err := Do(context.Background(), client, buildGet(t), Options{Op: "test", MaxRetries: 3, Backoff: noBackoff})
	var clientErr *domain.ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error type = %T, want *domain.ClientError", err)
	}
	if clientErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", clientErr.StatusCode)
	}
	if transport.calls != 1 {
		t.Fatalf("calls = %d, want 1 (4xx must fail fast)", transport.calls)
	}
}

func TestDoRetriesTransportErrors(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedStep{
		{err: errors.New("connection reset by peer")},
		{status: http.StatusOK},
	}}
	client := &http.Client{Transport: transport}

	resp, err := Do(context.Background(), client, buildGet(t), Options{Op: "test", MaxRetries: 3, Backoff: noBackoff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if transport.calls != 2 {
		t.Fatalf("calls = %d, want 2", transport.calls)
	}
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedStep{
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK},
	}}
	client := &http.Client{Transport: transport}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, client, buildGet(t), Options{
		Op:         "test",
		MaxRetries: 3,
		Backoff:    func(int) time.Duration { return time.Hour },
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if transport.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry after cancellation)", transport.calls)
	}
}
