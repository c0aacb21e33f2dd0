package frame

import "fmt"

// Encode builds a complete frame. The length field is derived from the
// payload; the checksum is computed. Header.Length is ignored.
func Encode(l Layout, h Header, payload []byte) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(payload) > l.MaxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), l.MaxPayload)
	}

	declared := uint32(len(payload) + l.LengthAdjust)
	hdrEnd := len(l.Marker) + l.HeaderLen()
	payloadEnd := hdrEnd + len(payload)
	buf := make([]byte, payloadEnd+l.TrailerLen())

	copy(buf, l.Marker)
	pos := len(l.Marker)
	csumAt, lengthWidth := -1, 0
	for _, f := range l.Header {
		field := buf[pos : pos+f.Width]
		switch f.Kind {
		case FieldVersion:
			l.Endian.PutUint(field, uint32(h.Version))
		case FieldTag:
			l.Endian.PutUint(field, uint32(h.Tag))
		case FieldLength:
			l.Endian.PutUint(field, declared)
			lengthWidth = f.Width
		case FieldLengthInverse:
			// Filled once the length width is known.
		case FieldChecksum:
			csumAt = pos
		case FieldTimeLow:
			l.Endian.PutUint(field, uint32(h.TimeLow))
		case FieldSubsecond:
			l.Endian.PutUint(field, uint32(h.Subsecond))
		case FieldSequence:
			l.Endian.PutUint(field, uint32(h.Sequence))
		}
		pos += f.Width
	}

	pos = len(l.Marker)
	for _, f := range l.Header {
		if f.Kind == FieldLengthInverse {
			l.Endian.PutUint(buf[pos:pos+f.Width], ^declared&widthMask(lengthWidth))
		}
		pos += f.Width
	}

	copy(buf[hdrEnd:], payload)

	sum := l.Checksum.Compute(coveredSegments(buf, l, hdrEnd, payloadEnd)...)
	if csumAt < 0 {
		csumAt = payloadEnd
	}
	l.Endian.PutUint(buf[csumAt:csumAt+l.Checksum.Width()], sum)
	return buf, nil
}
