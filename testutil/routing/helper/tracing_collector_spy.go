package helper

import (
	"context"
	"sync"

	"github.com/bestie/active-record-shards/routing"
)

// SpySpan is a SpanContext implementation that records status and attributes.
type SpySpan struct {
	Name       string
	Status     string
	Attributes map[string]string
	Finished   bool
	mu         sync.Mutex
}

// SetStatus implements the SpanContext interface.
func (s *SpySpan) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// AddAttribute implements the SpanContext interface.
func (s *SpySpan) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attributes[key] = value
}

// TracingCollectorSpy captures span lifecycles for testing. It implements
// the routing TracingCollector interface.
type TracingCollectorSpy struct {
	spans []*SpySpan
	mu    sync.Mutex
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{spans: make([]*SpySpan, 0)}
}

// StartSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, routing.SpanContext) {
	span := &SpySpan{
		Name:       name,
		Attributes: make(map[string]string, len(attrs)),
	}
	for k, v := range attrs {
		span.Attributes[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, span)

	return ctx, span
}

// FinishSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) FinishSpan(spanCtx routing.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpan)
	if !ok {
		return
	}

	span.mu.Lock()
	defer span.mu.Unlock()
	span.Status = status
	span.Finished = true
	for k, v := range attrs {
		span.Attributes[k] = v
	}
}

// Spans returns a copy of all captured spans.
func (s *TracingCollectorSpy) Spans() []*SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	spans := make([]*SpySpan, len(s.spans))
	copy(spans, s.spans)

	return spans
}

// Reset clears all captured spans.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = s.spans[:0]
}
