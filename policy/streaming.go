package policy

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/justapithecus/rawzeo/log"
	"github.com/justapithecus/rawzeo/record"
)

// StreamingConfig configures a StreamingPolicy. At least one trigger must be
// set; zero disables a trigger.
type StreamingConfig struct {
	FlushCount    int
	FlushInterval time.Duration
	Logger        *log.Logger
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	FlushTriggerCount       FlushTrigger = "count"
	FlushTriggerInterval    FlushTrigger = "interval"
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when neither flush trigger is set.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy batches records and writes them when the buffer reaches
// FlushCount, when FlushInterval elapses, or on Flush and Close. It never
// drops: a failed batch goes back in front of the buffer and is retried on
// the next trigger.
//
// mu guards the buffer, stats and trigger counts. flushMu serializes sink
// writes, which happen without mu held.
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig

	mu       sync.Mutex
	buffer   []record.Envelope
	stats    *statsRecorder
	triggers map[FlushTrigger]int64

	flushMu sync.Mutex

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewStreamingPolicy creates a streaming policy and starts its interval
// ticker when FlushInterval is set.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:     sink,
		config:   config,
		buffer:   make([]record.Envelope, 0, max(config.FlushCount, 128)),
		stats:    newStatsRecorder(),
		triggers: make(map[FlushTrigger]int64, 3),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if config.FlushInterval > 0 {
		go p.tick(config.FlushInterval)
	} else {
		close(p.done)
	}
	return p, nil
}

// Ingest appends the record and flushes once FlushCount records are
// buffered.
func (p *StreamingPolicy) Ingest(ctx context.Context, envelope record.Envelope) error {
	p.mu.Lock()
	p.stats.incTotalLocked()
	p.buffer = append(p.buffer, envelope)
	p.stats.setBufferSizeLocked(len(p.buffer))
	full := p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount
	p.mu.Unlock()

	if !full {
		return nil
	}
	return p.flush(ctx, FlushTriggerCount)
}

// Flush writes everything buffered.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.flush(ctx, FlushTriggerTermination)
}

func (p *StreamingPolicy) flush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	batch := p.take(trigger)
	if len(batch) == 0 {
		return nil
	}

	if err := p.sink.WriteRecords(ctx, batch); err != nil {
		p.restore(batch)
		p.log("streaming flush failed", trigger, len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.mu.Unlock()
	p.log("streaming flush", trigger, len(batch), nil)
	return nil
}

// take counts the trigger and detaches the current buffer.
func (p *StreamingPolicy) take(trigger FlushTrigger) []record.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.triggers[trigger]++
	p.stats.incFlushLocked()
	batch := p.buffer
	if len(batch) > 0 {
		p.buffer = make([]record.Envelope, 0, cap(batch))
		p.stats.setBufferSizeLocked(0)
	}
	return batch
}

// restore puts a failed batch ahead of records ingested during the write.
func (p *StreamingPolicy) restore(batch []record.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incErrorsLocked()
	p.buffer = append(batch, p.buffer...)
	p.stats.setBufferSizeLocked(len(p.buffer))
}

func (p *StreamingPolicy) tick(every time.Duration) {
	defer close(p.done)
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			if p.buffered() > 0 {
				// Failures stay buffered for the next trigger.
				_ = p.flush(context.Background(), FlushTriggerInterval)
			}
		}
	}
}

func (p *StreamingPolicy) buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Close stops the ticker, flushes what is left and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done

	return errors.Join(p.Flush(context.Background()), p.sink.Close())
}

// Stats returns a snapshot of policy statistics.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(int64(len(p.buffer)))
}

// FlushTriggerStats returns flush counts per trigger.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := map[FlushTrigger]int64{
		FlushTriggerCount:       0,
		FlushTriggerInterval:    0,
		FlushTriggerTermination: 0,
	}
	maps.Copy(out, p.triggers)
	return out
}

func (p *StreamingPolicy) log(msg string, trigger FlushTrigger, records int, err error) {
	logger := p.config.Logger
	if logger == nil {
		return
	}
	fields := map[string]any{
		"policy":  "streaming",
		"trigger": string(trigger),
		"records": records,
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.Error(msg, fields)
		return
	}
	logger.Debug(msg, fields)
}

var _ Policy = (*StreamingPolicy)(nil)
