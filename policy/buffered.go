package policy

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/justapithecus/rawzeo/log"
	"github.com/justapithecus/rawzeo/record"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferRecords is the maximum number of records to buffer.
	MaxBufferRecords int

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{MaxBufferRecords: 10000}
}

// ErrBufferFull is returned when the buffer is full and the record is not
// droppable.
var ErrBufferFull = errors.New("buffer full: cannot accept non-droppable record")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: MaxBufferRecords must be positive")

// BufferedPolicy implements buffered persistence with drop rules.
//
//   - Bounded buffer with an explicit record limit
//   - May drop: droppable kinds (see IsDroppable)
//   - Must NOT drop: every other kind
//   - One batch write per Flush; the buffer is kept on failure
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu     sync.Mutex
	buffer []record.Envelope
	stats  *statsRecorder
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config is invalid.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferRecords <= 0 {
		return nil, ErrInvalidConfig
	}
	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]record.Envelope, 0, min(config.MaxBufferRecords, 1024)),
		stats:  newStatsRecorder(),
	}, nil
}

// Ingest buffers the record, applying drop rules if the buffer is full.
//
// Drop strategy when full:
//   - If the incoming record is droppable: drop it, record in stats
//   - If it is not droppable and the buffer holds a droppable record: drop
//     the oldest droppable record
//   - Otherwise: return ErrBufferFull (fail the session)
func (p *BufferedPolicy) Ingest(_ context.Context, envelope record.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalLocked()

	if len(p.buffer) < p.config.MaxBufferRecords {
		p.append(envelope)
		return nil
	}

	if IsDroppable(envelope.Kind) {
		p.stats.incDroppedLocked(envelope.Kind)
		p.logDrop(envelope.Kind, "buffer_full")
		return nil
	}

	if p.dropOldestDroppable() {
		p.append(envelope)
		return nil
	}

	p.stats.incErrorsLocked()
	p.logBufferOverflow(envelope.Kind)
	return ErrBufferFull
}

// append adds a record. Caller must hold mu.
func (p *BufferedPolicy) append(envelope record.Envelope) {
	p.buffer = append(p.buffer, envelope)
	p.stats.setBufferSizeLocked(len(p.buffer))
}

// dropOldestDroppable removes the oldest droppable record from the buffer.
// Returns false if there is none. Caller must hold mu.
func (p *BufferedPolicy) dropOldestDroppable() bool {
	i := slices.IndexFunc(p.buffer, func(e record.Envelope) bool {
		return IsDroppable(e.Kind)
	})
	if i < 0 {
		return false
	}
	kind := p.buffer[i].Kind
	p.buffer = slices.Delete(p.buffer, i, i+1)
	p.stats.incDroppedLocked(kind)
	p.stats.setBufferSizeLocked(len(p.buffer))
	p.logDrop(kind, "evicted_for_non_droppable")
	return true
}

// Flush writes the buffer as one batch. On failure the buffer is preserved
// and the error returned.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incFlushLocked()
	if len(p.buffer) == 0 {
		return nil
	}

	if err := p.sink.WriteRecords(ctx, p.buffer); err != nil {
		p.stats.incErrorsLocked()
		p.logFlushFailure(len(p.buffer), err)
		return err
	}

	p.stats.incPersistedLocked(int64(len(p.buffer)))
	p.buffer = make([]record.Envelope, 0, cap(p.buffer))
	p.stats.setBufferSizeLocked(0)
	return nil
}

// Close flushes remaining records and closes the sink.
func (p *BufferedPolicy) Close() error {
	ferr := p.Flush(context.Background())
	return errors.Join(ferr, p.sink.Close())
}

// Stats returns an atomic snapshot of policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(int64(len(p.buffer)))
}

// --- Logging helpers ---

func (p *BufferedPolicy) logDrop(kind record.Kind, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("record dropped", map[string]any{
		"kind":   string(kind),
		"reason": reason,
		"policy": "buffered",
	})
}

func (p *BufferedPolicy) logBufferOverflow(kind record.Kind) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow: cannot drop non-droppable record", map[string]any{
		"kind":           string(kind),
		"buffer_records": len(p.buffer),
		"policy":         "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(records int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffered flush failed", map[string]any{
		"records": records,
		"error":   err.Error(),
		"policy":  "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
