// Package observability carries the pool's logging, metrics, and
// operation tracing.
//
// Tracing is in-process: every pool operation opens a span, and the most
// recent spans are kept in a ring buffer for the /api/spans endpoint.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ─── Spans ──────────────────────────────────────────────────────────────────

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// Span is one traced pool operation.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	Account   string            `json:"account,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer records completed spans in a bounded ring buffer.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
	now      func() time.Time
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool `toml:"enabled" env:"ENABLED"`
	MaxSpans int  `toml:"max_spans" env:"MAX_SPANS"` // ring buffer size (default 10_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 10_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		spans:    make([]Span, 0, min(cfg.MaxSpans, 1024)),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
		now:      time.Now,
	}
}

// StartSpan begins a span for operation on behalf of account.
// The caller must pass the span to EndSpan.
func (t *Tracer) StartSpan(ctx context.Context, operation, account string) *Span {
	if t == nil || !t.enabled {
		return &Span{Operation: operation, Account: account}
	}
	return &Span{
		TraceID:   traceIDFromContext(ctx),
		SpanID:    uuid.NewString(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		Account:   account,
		StartTime: t.now(),
		Status:    SpanOK,
	}
}

// SetAttr attaches a key/value to the span.
func (s *Span) SetAttr(key, value string) {
	if s.Attrs == nil {
		s.Attrs = make(map[string]string)
	}
	s.Attrs[key] = value
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if t == nil || !t.enabled || span == nil {
		return
	}

	span.EndTime = t.now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		span.SetAttr("error", err.Error())
		TraceErrors.Inc()
	}
	TracesRecorded.Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans, oldest first.
func (t *Tracer) Spans(limit int) []Span {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	out := make([]Span, limit)
	copy(out, t.spans[len(t.spans)-limit:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "treasury-trace-id"
	spanIDKey  contextKey = "treasury-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSpanID returns a context with the given span ID.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

// TraceID returns the trace ID carried by ctx, or "".
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

func traceIDFromContext(ctx context.Context) string {
	if v := TraceID(ctx); v != "" {
		return v
	}
	return uuid.NewString()
}

func spanIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(spanIDKey).(string)
	return v
}
