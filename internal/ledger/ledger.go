// Package ledger is the one-way sink for structured error reports. The
// pipeline and clients only ever write to it; nothing in this repository
// reads it back.
package ledger

import (
	"context"
	"sync"

	"asset-pipeline/internal/infra"
)

// Severity grades a recorded error.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Entry is one recorded error occurrence.
type Entry struct {
	Type      string
	Message   string
	Severity  Severity
	Component string
	Context   map[string]string
	Err       error
}

// Ledger receives error entries. Implementations must be safe for concurrent
// use and must never fail the caller.
type Ledger interface {
	Record(ctx context.Context, e Entry)
}

// Zerolog forwards entries to a structured logger. It is the default sink
// when no external ledger service is wired in.
type Zerolog struct {
	logger *infra.Logger
}

// NewZerolog wraps a logger as a ledger sink.
func NewZerolog(logger *infra.Logger) *Zerolog {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Zerolog{logger: logger}
}

// Record implements Ledger.
func (z *Zerolog) Record(_ context.Context, e Entry) {
	evt := z.logger.Error().
		Str("error_type", e.Type).
		Str("severity", string(e.Severity)).
		Str("component", e.Component)
	for k, v := range e.Context {
		evt = evt.Str(k, v)
	}
	if e.Err != nil {
		evt = evt.Err(e.Err)
	}
	evt.Msg(e.Message)
}

// Memory collects entries in memory. Intended for tests.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory { return &Memory{} }

// Record implements Ledger.
func (m *Memory) Record(_ context.Context, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// Entries returns a copy of everything recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

var (
	_ Ledger = (*Zerolog)(nil)
	_ Ledger = (*Memory)(nil)
)
