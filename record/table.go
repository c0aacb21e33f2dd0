package record

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/justapithecus/rawzeo/frame"
)

// Table binds wire tags to record kinds and decodes payloads.
// A Table is immutable after construction and safe for concurrent use.
type Table struct {
	byTag       map[uint8]Kind
	byKind      map[Kind]uint8
	order       frame.Endian
	scalarWidth int
}

// Option configures a Table.
type Option func(*Table)

// WithScalarWidth sets the payload width Encode uses for single-value kinds
// (sleep stage, event, signal quality, bad signal). Decode accepts 1, 2 or
// 4 bytes regardless. Defaults to 1.
func WithScalarWidth(n int) Option {
	return func(t *Table) {
		if n == 1 || n == 2 || n == 4 {
			t.scalarWidth = n
		}
	}
}

// NewTable validates tags and builds a Table.
func NewTable(tags map[uint8]Kind, order frame.Endian, opts ...Option) (*Table, error) {
	t := &Table{
		byTag:       make(map[uint8]Kind, len(tags)),
		byKind:      make(map[Kind]uint8, len(tags)),
		order:       order,
		scalarWidth: 1,
	}
	for _, opt := range opts {
		opt(t)
	}

	// Sorted so duplicate errors are deterministic.
	for _, tag := range slices.Sorted(maps.Keys(tags)) {
		kind := tags[tag]
		if _, ok := decoders[kind]; !ok {
			return nil, fmt.Errorf("tag 0x%02X: %w: %q", tag, ErrUnknownKind, string(kind))
		}
		if prev, dup := t.byKind[kind]; dup {
			return nil, fmt.Errorf("%w: %s on 0x%02X and 0x%02X", ErrDuplicateKind, kind, prev, tag)
		}
		t.byTag[tag] = kind
		t.byKind[kind] = tag
	}
	return t, nil
}

// KindOf returns the kind bound to tag.
func (t *Table) KindOf(tag uint8) (Kind, bool) {
	k, ok := t.byTag[tag]
	return k, ok
}

// TagOf returns the tag bound to kind.
func (t *Table) TagOf(kind Kind) (uint8, bool) {
	tag, ok := t.byKind[kind]
	return tag, ok
}

// Tags returns a copy of the binding.
func (t *Table) Tags() map[uint8]Kind {
	return maps.Clone(t.byTag)
}

// Order returns the payload byte order.
func (t *Table) Order() frame.Endian {
	return t.order
}

// Decode turns a validated payload into a record. meta.Tag selects the
// kind; unbound tags produce Unrecognized. Shape violations return an error
// wrapping ErrMalformed. The payload is never retained.
func (t *Table) Decode(meta Meta, payload []byte) (Record, error) {
	kind, ok := t.byTag[meta.Tag]
	if !ok {
		return Unrecognized{Meta: meta, Payload: bytes.Clone(payload)}, nil
	}
	rec, err := decoders[kind](meta, newPayloadReader(payload, t.order), len(payload))
	if err != nil {
		return nil, fmt.Errorf("%s (%d bytes): %w", kind, len(payload), err)
	}
	return rec, nil
}

// Encode produces the tag and payload for r, the inverse of Decode.
func (t *Table) Encode(r Record) (uint8, []byte, error) {
	if u, ok := r.(Unrecognized); ok {
		return u.Tag, bytes.Clone(u.Payload), nil
	}
	tag, ok := t.byKind[r.Kind()]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrNoTag, r.Kind())
	}
	w := &payloadWriter{order: t.order}
	if err := encodeRecord(w, r, t.scalarWidth); err != nil {
		return 0, nil, err
	}
	return tag, w.buf, nil
}
