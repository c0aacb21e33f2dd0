// Package policy defines how decoded records reach persistence.
package policy

import (
	"context"
	"maps"
	"sync"

	"github.com/justapithecus/rawzeo/record"
)

// Policy defines the ingestion policy interface.
// Policies control buffering, dropping, and persistence behavior.
//
//   - May drop: the high-rate signal kinds (see IsDroppable)
//   - Must NOT drop: sleep stages, events, timestamps and the other
//     low-rate kinds
//   - Policy must not alter record envelopes
//   - Policy failure terminates the session
type Policy interface {
	// Ingest handles one record envelope.
	// May drop droppable kinds; must not drop the rest and returns an
	// error instead.
	Ingest(ctx context.Context, envelope record.Envelope) error

	// Flush flushes any buffered records.
	// Called when the session ends, successfully or not.
	Flush(ctx context.Context) error

	// Close cleans up policy resources and closes the sink.
	Close() error

	// Stats returns an atomic snapshot of policy metrics.
	// All counters in the returned Stats are consistent with each other.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalRecords is the total number of records received.
	TotalRecords int64
	// RecordsPersisted is the number of records written to the sink.
	RecordsPersisted int64
	// RecordsDropped is the total number of records dropped.
	RecordsDropped int64
	// DroppedByKind maps record kinds to drop counts.
	DroppedByKind map[record.Kind]int64
	// BufferSize is the number of records currently buffered.
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of sink errors encountered.
	Errors int64
}

// droppableKinds are the high-rate kinds a bounded policy may shed.
var droppableKinds = map[record.Kind]bool{
	record.KindEegSample:     true,
	record.KindWaveform:      true,
	record.KindFrequencyBins: true,
	record.KindSignalQuality: true,
	record.KindImpedance:     true,
	record.KindBadSignal:     true,
}

// IsDroppable returns true if records of kind may be dropped by policy.
func IsDroppable(kind record.Kind) bool {
	return droppableKinds[kind]
}

// DroppableKinds returns the set of kinds that may be dropped.
func DroppableKinds() map[record.Kind]bool {
	return maps.Clone(droppableKinds)
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; recorder does not
// infer or automate any policy decisions.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods (incTotal, snapshot, etc.)
//   - BufferedPolicy and StreamingPolicy use the Locked methods only while
//     holding their own mu, keeping buffer state and counters
//     consistent.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedByKind: make(map[record.Kind]int64),
		},
	}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalRecords++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.RecordsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods ---
// Caller must hold the owning policy's mu.

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalRecords++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.RecordsPersisted += n
}

func (r *statsRecorder) incDroppedLocked(kind record.Kind) {
	r.stats.RecordsDropped++
	r.stats.DroppedByKind[kind]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(n int) {
	r.stats.BufferSize = int64(n)
}

// snapshotLocked returns an atomic snapshot of stats with the given
// bufferSize.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByKind = maps.Clone(r.stats.DroppedByKind)
	return s
}
