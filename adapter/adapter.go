// Package adapter forwards decoded records to downstream systems.
//
// Adapters publish batches of record envelopes. Sink turns an adapter into a
// policy.Sink so forwarding runs under the same ingestion policies as
// storage.
package adapter

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/record"
)

// Adapter publishes record batches to a downstream system.
type Adapter interface {
	// Publish sends a batch in order.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, records []record.Envelope) error

	// Close releases adapter resources.
	Close() error
}

// InitialBackoff is the first retry delay; later delays double.
const InitialBackoff = 500 * time.Millisecond

// Retry runs op up to 1+retries times with exponential backoff between
// attempts. An op error wrapped with backoff.Permanent stops retrying and
// is returned unwrapped. Cancellation of ctx ends the loop with ctx's error.
func Retry(ctx context.Context, retries int, initial time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(retries, 0))), ctx))
}

// forwardSink adapts an Adapter to policy.Sink and counts publishes.
type forwardSink struct {
	adapter   Adapter
	collector *metrics.Collector
}

// Sink wraps a as a policy.Sink. Each WriteRecords call counts one forward
// success or failure on collector, which may be nil.
func Sink(a Adapter, collector *metrics.Collector) policy.Sink {
	return &forwardSink{adapter: a, collector: collector}
}

func (s *forwardSink) WriteRecords(ctx context.Context, records []record.Envelope) error {
	if len(records) == 0 {
		return nil
	}
	err := s.adapter.Publish(ctx, records)
	if err != nil {
		s.collector.IncForwardFailure()
	} else {
		s.collector.IncForwardSuccess()
	}
	return err
}

func (s *forwardSink) Close() error {
	return s.adapter.Close()
}
