// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a decode session. It is a leaf
// package with no internal dependencies: record kinds and rejection reasons
// are passed as strings. Ingestion policy metrics are absorbed from
// policy.Stats at session completion rather than recorded live, avoiding
// double-counting.
package metrics

import (
	"maps"
	"sync"
)

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsCompleted int64
	SessionsFailed    int64
	SessionsCanceled  int64

	// Decoder
	BytesRead        int64
	BytesSkipped     int64
	BytesDropped     int64
	FramesAccepted   int64
	FramesRejected   int64
	RejectedByReason map[string]int64
	RecordsByKind    map[string]int64
	SequenceGaps     int64
	ClockResets      int64

	// Transport
	TransportErrors int64

	// Ingestion (absorbed from policy.Stats at session completion)
	RecordsReceived  int64
	RecordsPersisted int64
	RecordsDropped   int64
	FlushCount       int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Forwarding adapters
	ForwardSuccess int64
	ForwardFailure int64

	// Dimensions (informational, set at construction)
	Profile        string
	Policy         string
	StorageBackend string
	SessionID      string
}

// Collector accumulates metrics during a session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsCompleted int64
	sessionsFailed    int64
	sessionsCanceled  int64

	bytesRead        int64
	bytesSkipped     int64
	bytesDropped     int64
	framesAccepted   int64
	framesRejected   int64
	rejectedByReason map[string]int64
	recordsByKind    map[string]int64
	sequenceGaps     int64
	clockResets      int64

	transportErrors int64

	recordsReceived  int64
	recordsPersisted int64
	recordsDropped   int64
	flushCount       int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	forwardSuccess int64
	forwardFailure int64

	profile        string
	policy         string
	storageBackend string
	sessionID      string
}

// NewCollector creates a Collector with dimension labels. Empty dimensions
// are allowed.
func NewCollector(profile, policy, storageBackend, sessionID string) *Collector {
	return &Collector{
		rejectedByReason: make(map[string]int64),
		recordsByKind:    make(map[string]int64),
		profile:          profile,
		policy:           policy,
		storageBackend:   storageBackend,
		sessionID:        sessionID,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncSessionCompleted records a session that reached the end of its sources.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsCompleted, 1)
}

// IncSessionFailed records a session ended by a transport or sink error.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.add(&c.sessionsFailed, 1)
}

// IncSessionCanceled records a session ended by cancellation.
func (c *Collector) IncSessionCanceled() {
	if c == nil {
		return
	}
	c.add(&c.sessionsCanceled, 1)
}

// --- Decoder ---

// AddBytesRead records n bytes delivered by the transport.
func (c *Collector) AddBytesRead(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.add(&c.bytesRead, int64(n))
}

// IncRecord records an accepted frame decoded as kind.
func (c *Collector) IncRecord(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesAccepted++
	c.recordsByKind[kind]++
	c.mu.Unlock()
}

// IncRejection records a rejection notice. Overflow notices count their
// bytes as dropped; every other reason counts as a rejected frame and its
// bytes as skipped.
func (c *Collector) IncRejection(reason string, skipped int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rejectedByReason[reason]++
	if reason == "overflow" {
		c.bytesDropped += int64(skipped)
	} else {
		c.framesRejected++
		c.bytesSkipped += int64(skipped)
	}
	c.mu.Unlock()
}

// AddGarbage records bytes skipped while searching for a marker.
func (c *Collector) AddGarbage(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.add(&c.bytesSkipped, n)
}

// AddSequenceGaps records frames missing from the sequence numbering.
func (c *Collector) AddSequenceGaps(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.add(&c.sequenceGaps, n)
}

// IncClockReset records a timestamp that did not match the running clock.
func (c *Collector) IncClockReset() {
	if c == nil {
		return
	}
	c.add(&c.clockResets, 1)
}

// --- Transport ---

// IncTransportError records a read failure.
func (c *Collector) IncTransportError() {
	if c == nil {
		return
	}
	c.add(&c.transportErrors, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record. A single WriteRecords call
// with N records counts as 1 success. Per-record granularity is tracked
// separately by policy.Stats.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteSuccess, 1)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteFailure, 1)
}

// --- Forwarding ---

// IncForwardSuccess records a successful adapter publish (per-call).
func (c *Collector) IncForwardSuccess() {
	if c == nil {
		return
	}
	c.add(&c.forwardSuccess, 1)
}

// IncForwardFailure records a failed adapter publish (per-call).
func (c *Collector) IncForwardFailure() {
	if c == nil {
		return
	}
	c.add(&c.forwardFailure, 1)
}

// --- Ingestion (absorbed from policy.Stats) ---

// AbsorbPolicyStats adds ingestion counters from a policy.Stats snapshot.
// Called once per policy after the session ends.
func (c *Collector) AbsorbPolicyStats(total, persisted, dropped, flushes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsReceived += total
	c.recordsPersisted += persisted
	c.recordsDropped += dropped
	c.flushCount += flushes
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{
			RejectedByReason: map[string]int64{},
			RecordsByKind:    map[string]int64{},
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,
		SessionsCanceled:  c.sessionsCanceled,

		BytesRead:        c.bytesRead,
		BytesSkipped:     c.bytesSkipped,
		BytesDropped:     c.bytesDropped,
		FramesAccepted:   c.framesAccepted,
		FramesRejected:   c.framesRejected,
		RejectedByReason: maps.Clone(c.rejectedByReason),
		RecordsByKind:    maps.Clone(c.recordsByKind),
		SequenceGaps:     c.sequenceGaps,
		ClockResets:      c.clockResets,

		TransportErrors: c.transportErrors,

		RecordsReceived:  c.recordsReceived,
		RecordsPersisted: c.recordsPersisted,
		RecordsDropped:   c.recordsDropped,
		FlushCount:       c.flushCount,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		ForwardSuccess: c.forwardSuccess,
		ForwardFailure: c.forwardFailure,

		Profile:        c.profile,
		Policy:         c.policy,
		StorageBackend: c.storageBackend,
		SessionID:      c.sessionID,
	}
}
