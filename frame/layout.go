// Package frame implements the byte-level half of the decoder: locating the
// synchronization marker, assembling a candidate frame from its header, and
// validating it against the configured integrity check.
//
// Nothing in this package is specific to one device. The marker, header
// fields, checksum algorithm and byte order are described by a Layout that is
// validated once at construction time.
package frame

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FieldKind identifies a fixed-width header field.
type FieldKind int

const (
	// FieldVersion is the protocol version byte.
	FieldVersion FieldKind = iota + 1
	// FieldTag is the record type tag.
	FieldTag
	// FieldLength is the declared length (1, 2 or 4 bytes).
	FieldLength
	// FieldLengthInverse is the bitwise complement of FieldLength.
	FieldLengthInverse
	// FieldChecksum places the checksum inside the header rather than
	// after the payload.
	FieldChecksum
	// FieldTimeLow is the low byte of the device clock.
	FieldTimeLow
	// FieldSubsecond is a 2-byte sub-second counter.
	FieldSubsecond
	// FieldSequence is a 1-byte wrapping frame counter.
	FieldSequence
)

var fieldNames = map[FieldKind]string{
	FieldVersion:       "version",
	FieldTag:           "tag",
	FieldLength:        "length",
	FieldLengthInverse: "length_inverse",
	FieldChecksum:      "checksum",
	FieldTimeLow:       "time_low",
	FieldSubsecond:     "subsecond",
	FieldSequence:      "sequence",
}

func (k FieldKind) String() string {
	if name, ok := fieldNames[k]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(k))
}

// ParseFieldKind resolves a field name as written in configuration files.
func ParseFieldKind(name string) (FieldKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range fieldNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Field is one entry of the header table.
type Field struct {
	Kind  FieldKind
	Width int
}

// Endian selects the byte order of multi-byte header and payload fields.
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

func (e Endian) String() string {
	if e == LittleEndian {
		return "little"
	}
	return "big"
}

// ParseEndian accepts "big"/"be" and "little"/"le".
func ParseEndian(s string) (Endian, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "big", "be", "":
		return BigEndian, nil
	case "little", "le":
		return LittleEndian, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEndian, s)
}

func (e Endian) order() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Uint reads an unsigned integer of len(b) bytes (1, 2 or 4).
func (e Endian) Uint(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(e.order().Uint16(b))
	case 4:
		return e.order().Uint32(b)
	}
	return 0
}

// PutUint writes v into len(b) bytes (1, 2 or 4), truncating.
func (e Endian) PutUint(b []byte, v uint32) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		e.order().PutUint16(b, uint16(v))
	case 4:
		e.order().PutUint32(b, v)
	}
}

// Scope selects which bytes the checksum covers.
type Scope int

const (
	// ScopeHeaderPayload covers every header byte except the checksum
	// field itself, followed by the payload. The marker is never covered.
	ScopeHeaderPayload Scope = iota
	// ScopeTagPayload covers the tag byte followed by the payload.
	ScopeTagPayload
)

func (s Scope) String() string {
	if s == ScopeTagPayload {
		return "tag_payload"
	}
	return "header_payload"
}

// ParseScope resolves a checksum scope name.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "header_payload", "":
		return ScopeHeaderPayload, nil
	case "tag_payload":
		return ScopeTagPayload, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// Layout describes the wire format of one protocol.
type Layout struct {
	// Marker is the synchronization byte sequence preceding every frame.
	Marker []byte
	// Header lists the fixed-width fields between marker and payload in
	// wire order. It must contain a tag and a length field.
	Header []Field
	// Checksum is the integrity algorithm. When Header has no checksum
	// field the checksum is a trailer after the payload.
	Checksum Algorithm
	Scope    Scope
	Endian   Endian
	// LengthAdjust is subtracted from the declared length to obtain the
	// payload length, for protocols whose length counts header bytes.
	LengthAdjust int
	// MaxPayload bounds the payload length. Larger declarations are
	// treated as corruption instead of being waited for.
	MaxPayload int
	// Versions is the set of accepted version bytes. Required when the
	// header has a version field.
	Versions []uint8
}

// Validate checks the layout for internal consistency. All returned errors
// are *LayoutError.
func (l Layout) Validate() error {
	if len(l.Marker) == 0 {
		return layoutErr("marker", ErrEmptyMarker)
	}
	if l.Checksum.Width() == 0 {
		return layoutErr("checksum", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(l.Checksum)))
	}

	seen := make(map[FieldKind]bool, len(l.Header))
	lengthWidth := 0
	for _, f := range l.Header {
		if _, ok := fieldNames[f.Kind]; !ok {
			return layoutErr("header", fmt.Errorf("%w: %v", ErrUnknownField, f.Kind))
		}
		if seen[f.Kind] {
			return layoutErr(f.Kind.String(), ErrDuplicateField)
		}
		seen[f.Kind] = true

		ok := false
		switch f.Kind {
		case FieldVersion, FieldTag, FieldTimeLow, FieldSequence:
			ok = f.Width == 1
		case FieldSubsecond:
			ok = f.Width == 2
		case FieldLength:
			ok = f.Width == 1 || f.Width == 2 || f.Width == 4
			lengthWidth = f.Width
		case FieldChecksum:
			ok = f.Width == l.Checksum.Width()
		}
		if !ok && f.Kind != FieldLengthInverse {
			return layoutErr(f.Kind.String(), fmt.Errorf("%w: %d", ErrFieldWidth, f.Width))
		}
	}
	if !seen[FieldTag] {
		return layoutErr("tag", ErrMissingField)
	}
	if !seen[FieldLength] {
		return layoutErr("length", ErrMissingField)
	}
	if seen[FieldLengthInverse] {
		if w := l.fieldWidth(FieldLengthInverse); w != lengthWidth {
			return layoutErr("length_inverse", fmt.Errorf("%w: %d, length is %d", ErrFieldWidth, w, lengthWidth))
		}
	}
	if seen[FieldVersion] && len(l.Versions) == 0 {
		return layoutErr("versions", ErrNoVersions)
	}

	if l.LengthAdjust < 0 {
		return layoutErr("length_adjust", fmt.Errorf("%w: %d", ErrLengthAdjust, l.LengthAdjust))
	}
	limit := int64(1)<<(8*lengthWidth) - 1 - int64(l.LengthAdjust)
	if l.MaxPayload <= 0 || int64(l.MaxPayload) > limit {
		return layoutErr("max_payload", fmt.Errorf("%w: %d not in 1..%d", ErrMaxPayload, l.MaxPayload, limit))
	}

	if w := l.Checksum.Width(); w > l.minCovered() {
		return layoutErr("checksum", fmt.Errorf("%w: %d-byte %s over %d bytes", ErrChecksumWindow, w, l.Checksum, l.minCovered()))
	}
	return nil
}

// minCovered is the number of checksummed bytes in a frame with an empty
// payload.
func (l Layout) minCovered() int {
	if l.Scope == ScopeTagPayload {
		return 1
	}
	n := l.HeaderLen()
	if l.ChecksumInHeader() {
		n -= l.Checksum.Width()
	}
	return n
}

func (l Layout) fieldWidth(kind FieldKind) int {
	for _, f := range l.Header {
		if f.Kind == kind {
			return f.Width
		}
	}
	return 0
}

// Has reports whether the header contains a field of the given kind.
func (l Layout) Has(kind FieldKind) bool {
	return l.fieldWidth(kind) > 0
}

// ChecksumInHeader reports whether the checksum is a header field.
func (l Layout) ChecksumInHeader() bool {
	return l.Has(FieldChecksum)
}

// HeaderLen is the total width of the header fields.
func (l Layout) HeaderLen() int {
	n := 0
	for _, f := range l.Header {
		n += f.Width
	}
	return n
}

// TrailerLen is the width of the trailing checksum, 0 when it lives in the
// header.
func (l Layout) TrailerLen() int {
	if l.ChecksumInHeader() {
		return 0
	}
	return l.Checksum.Width()
}

// MinFrameSize is the size of a frame with an empty payload.
func (l Layout) MinFrameSize() int {
	return len(l.Marker) + l.HeaderLen() + l.TrailerLen()
}

// MaxFrameSize is the size of a frame carrying MaxPayload bytes.
func (l Layout) MaxFrameSize() int {
	return l.MinFrameSize() + l.MaxPayload
}

// AcceptsVersion reports whether v is in the accepted version set. Layouts
// without a version field accept everything.
func (l Layout) AcceptsVersion(v uint8) bool {
	if !l.Has(FieldVersion) {
		return true
	}
	for _, accepted := range l.Versions {
		if v == accepted {
			return true
		}
	}
	return false
}
