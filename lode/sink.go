// Package lode persists decoded records to a Lode dataset.
//
// Records are Hive-partitioned by device, day, session and record kind and
// stored as JSON lines. The same layout serves the read path used by the
// inspect command.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/record"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "rawzeo"

// DefaultDevice is the device partition used when none is configured.
const DefaultDevice = "zeo"

// DefaultRetryBackoff is the first wait between write retries.
const DefaultRetryBackoff = 200 * time.Millisecond

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"device", "day", "session_id", "kind"}

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Device is the partition key naming the headband or capture source.
	Device string
	// Day is the partition key derived from session start (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the decode session.
	SessionID string
	// Profile is the protocol profile, stored on every record.
	Profile string
}

// withDefaults fills empty dataset and device.
func (c Config) withDefaults() Config {
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	return c
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteRecords writes a batch of records.
	// Must preserve ordering within the batch.
	WriteRecords(ctx context.Context, records []record.Envelope) error

	// WriteMetrics writes the session metrics summary.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error

	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed implementation of policy.Sink.
type Sink struct {
	client  Client
	retries int
	initial time.Duration
}

// NewSink creates a new Lode sink that does not retry.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WithRetries makes the sink retry transient write failures up to n times,
// doubling the wait from initial. Other failures are returned at once.
func (s *Sink) WithRetries(n int, initial time.Duration) *Sink {
	s.retries = max(n, 0)
	s.initial = initial
	if s.initial <= 0 {
		s.initial = DefaultRetryBackoff
	}
	return s
}

// WriteRecords implements policy.Sink.
func (s *Sink) WriteRecords(ctx context.Context, records []record.Envelope) error {
	if s.retries == 0 {
		return s.client.WriteRecords(ctx, records)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.Retry(func() error {
		err := s.client.WriteRecords(ctx, records)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.retries)), ctx))
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that accepts writes without persisting.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]record.Envelope
	Metrics []metrics.Snapshot
	Closed  bool
	// Err, if non-nil, is returned by every write.
	Err error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, records []record.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Batches = append(c.Batches, records)
	return nil
}

// WriteMetrics implements Client.
func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Metrics = append(c.Metrics, snap)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
