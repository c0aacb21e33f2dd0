package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/rawzeo/record"
)

// Sink abstracts persistence for policies.
// Implementations may write to storage, forward to a queue, or stub for
// testing.
//
// Writes are batch-oriented to support both strict (batch of 1) and
// buffered policies.
type Sink interface {
	// WriteRecords persists a batch of record envelopes.
	// Must preserve ordering within the batch.
	// Returns error on failure; caller decides whether to retry or fail.
	WriteRecords(ctx context.Context, records []record.Envelope) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// RecordsWritten is the total count of records written.
	RecordsWritten int64
	// Batches is the number of WriteRecords calls.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores all written records for inspection.
	Written []record.Envelope
	// BatchSizes records the length of each successful batch.
	BatchSizes []int

	// ErrorOnWrite, if non-nil, is returned by WriteRecords.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteRecords records the batch without persisting.
func (s *StubSink) WriteRecords(_ context.Context, records []record.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.RecordsWritten += int64(len(records))
	s.Written = append(s.Written, records...)
	s.BatchSizes = append(s.BatchSizes, len(records))
	return nil
}

// SetError sets the error returned by subsequent writes. Nil clears it.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		RecordsWritten: s.RecordsWritten,
		Batches:        s.Batches,
		Closed:         s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	RecordsWritten int64
	Batches        int64
	Closed         bool
}
