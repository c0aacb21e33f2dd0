// Package decoder turns an unbounded byte stream into validated records.
//
// The Engine owns a bounded reservoir. Callers push bytes in whatever chunks
// the transport delivers and pull outputs; the engine never blocks and does
// no I/O. A candidate frame that fails validation costs exactly one byte: the
// scan resumes right after the rejected marker start, so a genuine frame
// overlapping corrupted data is never skipped.
package decoder

import (
	"errors"
	"fmt"
	"iter"

	"github.com/justapithecus/rawzeo/frame"
	"github.com/justapithecus/rawzeo/record"
	"github.com/justapithecus/rawzeo/reservoir"
)

var (
	// ErrNoTable is returned when Config.Tags is nil.
	ErrNoTable = errors.New("decoder: tag table is required")
	// ErrCapacity is returned when the reservoir cannot hold one maximal
	// frame.
	ErrCapacity = errors.New("decoder: capacity below max frame size")
)

// MinCapacity is the smallest default reservoir size.
const MinCapacity = 4096

// Config configures an Engine.
type Config struct {
	Layout frame.Layout
	Tags   *record.Table
	// Capacity is the reservoir size in bytes. Zero selects
	// DefaultCapacity(Layout).
	Capacity int
	// OnReject receives rejections skipped by Records. Optional.
	OnReject func(Rejection)
}

// DefaultCapacity returns room for four maximal frames, at least MinCapacity.
func DefaultCapacity(l frame.Layout) int {
	return max(MinCapacity, 4*l.MaxFrameSize())
}

// Rejection reports a discarded candidate frame or lost bytes.
type Rejection struct {
	Reason frame.Reason
	// Offset is the absolute stream offset of the rejected marker, or of
	// the first byte lost to overflow.
	Offset int64
	// Skipped is the number of bytes this rejection discarded.
	Skipped int
	// Tag is the frame tag when the header was readable.
	Tag    uint8
	HasTag bool
	// Err carries the decode error for malformed payloads.
	Err error
}

func (r Rejection) String() string {
	s := fmt.Sprintf("%s at offset %d (%d bytes)", r.Reason, r.Offset, r.Skipped)
	if r.HasTag {
		s += fmt.Sprintf(" tag 0x%02X", r.Tag)
	}
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}

// Output is one step of the decoder: exactly one of Record or Rejection is
// set.
type Output struct {
	Record    record.Record
	Rejection *Rejection
}

// Engine is the pull-based frame decoder. It is not safe for concurrent
// use; a single owner pushes and pulls.
type Engine struct {
	layout   frame.Layout
	table    *record.Table
	res      *reservoir.Reservoir
	onReject func(Rejection)

	phase     Phase
	candidate int64 // absolute offset of the marker at the head
	raw       frame.Raw
	pending   []Rejection
	state     State
}

// New validates cfg and creates an Engine. Configuration problems are
// returned here and never surface while decoding.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.Tags == nil {
		return nil, ErrNoTable
	}
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity(cfg.Layout)
	}
	if capacity < cfg.Layout.MaxFrameSize() {
		return nil, fmt.Errorf("%w: %d < %d", ErrCapacity, capacity, cfg.Layout.MaxFrameSize())
	}
	res, err := reservoir.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	e := &Engine{
		layout:   cfg.Layout,
		table:    cfg.Tags,
		res:      res,
		onReject: cfg.OnReject,
	}
	e.state.Rejections = make(map[frame.Reason]int64)
	return e, nil
}

// Layout returns the engine's frame layout.
func (e *Engine) Layout() frame.Layout { return e.layout }

// Push appends p to the reservoir. When the reservoir overflows the oldest
// bytes are lost, an overflow rejection is queued, and a pending candidate
// whose marker was evicted is abandoned.
func (e *Engine) Push(p []byte) {
	before := e.res.Offset()
	dropped := e.res.Append(p)
	if dropped == 0 {
		return
	}

	e.state.Dropped += int64(dropped)
	if e.phase != Searching && e.res.Offset() > e.candidate {
		e.phase = Searching
		e.raw = frame.Raw{}
	}
	// Contiguous losses that nobody has pulled yet merge into one notice.
	if n := len(e.pending); n > 0 {
		last := &e.pending[n-1]
		if last.Reason == frame.ReasonOverflow && last.Offset+int64(last.Skipped) == before {
			last.Skipped += dropped
			return
		}
	}
	e.pending = append(e.pending, Rejection{
		Reason:  frame.ReasonOverflow,
		Offset:  before,
		Skipped: dropped,
	})
	e.state.Rejections[frame.ReasonOverflow]++
}

// Write implements io.Writer over Push. It never fails.
func (e *Engine) Write(p []byte) (int, error) {
	e.Push(p)
	return len(p), nil
}

// Next advances the state machine until it can return one record or one
// rejection. It returns false when more input is needed.
func (e *Engine) Next() (Output, bool) {
	if len(e.pending) > 0 {
		r := e.pending[0]
		e.pending = e.pending[1:]
		return Output{Rejection: &r}, true
	}

	for {
		view := e.res.View()
		switch e.phase {
		case Searching:
			pos, result := frame.Scan(view, 0, e.layout.Marker)
			if pos > 0 {
				e.skip(pos)
			}
			if result != frame.Found {
				return Output{}, false
			}
			e.phase = HeaderPending
			e.candidate = e.res.Offset()

		case HeaderPending:
			raw, status, reason := frame.Assemble(view, e.layout)
			switch status {
			case frame.Incomplete:
				return Output{}, false
			case frame.Corrupt:
				return e.reject(reason, false, nil), true
			}
			e.raw = raw
			e.phase = Validating

		case Validating:
			if reason, ok := frame.Validate(e.raw, e.layout); !ok {
				return e.reject(reason, true, nil), true
			}
			h := e.raw.Header
			meta := record.Meta{
				Offset:    e.candidate,
				Version:   h.Version,
				Tag:       h.Tag,
				Sequence:  h.Sequence,
				TimeLow:   h.TimeLow,
				Subsecond: h.Subsecond,
			}
			rec, err := e.table.Decode(meta, e.raw.Payload)
			if err != nil {
				return e.reject(frame.ReasonMalformed, true, err), true
			}
			e.accept()
			return Output{Record: rec}, true
		}
	}
}

// skip discards n garbage bytes while searching.
func (e *Engine) skip(n int) {
	e.res.Consume(n)
	e.state.Skipped += int64(n)
	e.state.Garbage += int64(n)
}

// reject discards one byte past the candidate marker start and returns to
// Searching.
func (e *Engine) reject(reason frame.Reason, hasTag bool, err error) Output {
	r := Rejection{
		Reason:  reason,
		Offset:  e.candidate,
		Skipped: 1,
		Err:     err,
	}
	if hasTag {
		r.Tag, r.HasTag = e.raw.Header.Tag, true
	}
	e.skip(1)
	e.state.Rejected++
	e.state.Rejections[reason]++
	e.phase = Searching
	e.raw = frame.Raw{}
	return Output{Rejection: &r}
}

func (e *Engine) accept() {
	if e.layout.Has(frame.FieldSequence) {
		seq := e.raw.Header.Sequence
		if e.state.HasSequence {
			if want := e.state.LastSequence + 1; seq != want {
				e.state.SequenceGaps += int64(seq - want)
			}
		}
		e.state.LastSequence, e.state.HasSequence = seq, true
	}
	e.res.Consume(e.raw.Size)
	e.state.Accepted++
	e.state.Garbage = 0
	e.phase = Searching
	e.raw = frame.Raw{}
}

// Records yields decoded records until more input is needed. Rejections are
// passed to Config.OnReject.
func (e *Engine) Records() iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for {
			out, ok := e.Next()
			if !ok {
				return
			}
			if out.Rejection != nil {
				if e.onReject != nil {
					e.onReject(*out.Rejection)
				}
				continue
			}
			if !yield(out.Record) {
				return
			}
		}
	}
}

// Outputs yields records and rejections in stream order until more input is
// needed.
func (e *Engine) Outputs() iter.Seq[Output] {
	return func(yield func(Output) bool) {
		for {
			out, ok := e.Next()
			if !ok || !yield(out) {
				return
			}
		}
	}
}

// State returns a snapshot of the decoder counters.
func (e *Engine) State() State {
	s := e.state.clone()
	s.Phase = e.phase
	s.Buffered = e.res.Len()
	s.Offset = e.res.Offset()
	return s
}

// Reset discards buffered bytes and queued rejections, zeroes the counters
// and returns to Searching. Stream offsets keep increasing across resets.
func (e *Engine) Reset() {
	e.res.Reset()
	e.phase = Searching
	e.candidate = 0
	e.raw = frame.Raw{}
	e.pending = nil
	e.state = State{Rejections: make(map[frame.Reason]int64)}
}
