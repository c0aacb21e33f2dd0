// Package reservoir provides the bounded staging buffer that sits between a
// byte transport and the frame decoder.
//
// The reservoir is a mirrored ring: every byte is written twice, at its slot
// and at slot+capacity, so the live window (at most capacity bytes) is always
// a contiguous slice of the backing array. View never copies, Consume is a
// cursor advance, and overflow evicts the oldest bytes.
package reservoir

import "errors"

// ErrCapacity is returned by New for a non-positive capacity.
var ErrCapacity = errors.New("reservoir: capacity must be positive")

// Reservoir is a fixed-capacity, drop-oldest byte buffer.
// It is not safe for concurrent use; callers serialize access.
type Reservoir struct {
	buf      []byte // 2 * capacity, mirrored
	capacity int
	start    int   // physical index of the first live byte, in [0, capacity)
	length   int   // live bytes, in [0, capacity]
	offset   int64 // absolute stream offset of the first live byte
	dropped  int64 // lifetime bytes evicted by overflow
}

// New creates a reservoir holding at most capacity bytes.
func New(capacity int) (*Reservoir, error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	return &Reservoir{
		buf:      make([]byte, 2*capacity),
		capacity: capacity,
	}, nil
}

// Append adds p to the tail. When the result would exceed capacity the oldest
// bytes are discarded first. Returns the number of bytes dropped by this call;
// dropped bytes include the leading part of p itself when len(p) > capacity.
func (r *Reservoir) Append(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	dropped := 0
	if len(p) > r.capacity {
		skip := len(p) - r.capacity
		dropped += skip
		p = p[skip:]
		// Everything currently buffered is older than what survives of p.
		dropped += r.length
		r.evict(r.length)
		r.offset += int64(skip)
	} else if over := r.length + len(p) - r.capacity; over > 0 {
		dropped += over
		r.evict(over)
	}

	tail := (r.start + r.length) % r.capacity
	for i, b := range p {
		slot := (tail + i) % r.capacity
		r.buf[slot] = b
		r.buf[slot+r.capacity] = b
	}
	r.length += len(p)
	r.dropped += int64(dropped)
	return dropped
}

// evict drops n bytes from the head without counting them.
func (r *Reservoir) evict(n int) {
	r.start = (r.start + n) % r.capacity
	r.length -= n
	r.offset += int64(n)
}

// Consume permanently discards the first n bytes. n is clamped to Len.
func (r *Reservoir) Consume(n int) {
	if n <= 0 {
		return
	}
	if n > r.length {
		n = r.length
	}
	r.evict(n)
	if r.length == 0 {
		r.start = 0
	}
}

// View returns the live bytes in stream order. The slice aliases internal
// storage: it must not be modified and is only valid until the next Append,
// Consume or Reset.
func (r *Reservoir) View() []byte {
	return r.buf[r.start : r.start+r.length : r.start+r.length]
}

// Len returns the number of live bytes.
func (r *Reservoir) Len() int { return r.length }

// Cap returns the capacity.
func (r *Reservoir) Cap() int { return r.capacity }

// Offset returns the absolute stream offset of View()[0].
func (r *Reservoir) Offset() int64 { return r.offset }

// Dropped returns the lifetime count of bytes lost to overflow.
func (r *Reservoir) Dropped() int64 { return r.dropped }

// Reset discards all live bytes. The stream offset keeps advancing so that
// offsets reported after a reset never collide with earlier ones.
func (r *Reservoir) Reset() {
	r.offset += int64(r.length)
	r.start = 0
	r.length = 0
}
