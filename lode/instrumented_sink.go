package lode

import (
	"context"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/record"
)

// InstrumentedSink wraps a policy.Sink and records write metrics. Each
// WriteRecords call increments the Lode write success or failure counter.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRecords delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteRecords(ctx context.Context, records []record.Envelope) error {
	err := s.inner.WriteRecords(ctx, records)
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
