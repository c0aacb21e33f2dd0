package frame

// Status is the outcome of assembling a candidate frame.
type Status int

const (
	// Incomplete means more bytes are needed. Nothing was consumed.
	Incomplete Status = iota
	// Ready means the whole frame is present and was parsed.
	Ready
	// Corrupt means the header is impossible; the reason says why.
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Corrupt:
		return "corrupt"
	default:
		return "incomplete"
	}
}

// Header holds the decoded header fields. Fields absent from the layout
// stay zero.
type Header struct {
	Version   uint8
	Tag       uint8
	Length    uint32 // declared, before LengthAdjust
	TimeLow   uint8
	Subsecond uint16
	Sequence  uint8
}

// Raw is an assembled, not yet validated frame. Payload aliases the view
// passed to Assemble and is only valid until the view changes.
type Raw struct {
	Header  Header
	Payload []byte
	// Stored is the checksum carried by the frame.
	Stored uint32
	// Size is the full frame size including marker and trailer.
	Size int

	covered [][]byte
}

// Covered returns the checksummed byte segments in order.
func (r Raw) Covered() [][]byte {
	return r.covered
}

// Assemble parses the frame whose marker starts at view[0]. Assemble is
// idempotent: repeated calls on a growing view return Incomplete until the
// frame is complete, then a stable Ready or Corrupt result.
//
// Length problems are reported as Corrupt as soon as the header is present
// rather than waiting for a payload that may never arrive.
func Assemble(view []byte, l Layout) (Raw, Status, Reason) {
	hdrStart := len(l.Marker)
	hdrEnd := hdrStart + l.HeaderLen()
	if len(view) < hdrEnd {
		return Raw{}, Incomplete, 0
	}

	var (
		raw     Raw
		inverse uint32
		hasInv  bool
		width   int
	)
	pos := hdrStart
	for _, f := range l.Header {
		b := view[pos : pos+f.Width]
		v := l.Endian.Uint(b)
		switch f.Kind {
		case FieldVersion:
			raw.Header.Version = uint8(v)
		case FieldTag:
			raw.Header.Tag = uint8(v)
		case FieldLength:
			raw.Header.Length = v
			width = f.Width
		case FieldLengthInverse:
			inverse, hasInv = v, true
		case FieldChecksum:
			raw.Stored = v
		case FieldTimeLow:
			raw.Header.TimeLow = uint8(v)
		case FieldSubsecond:
			raw.Header.Subsecond = uint16(v)
		case FieldSequence:
			raw.Header.Sequence = uint8(v)
		}
		pos += f.Width
	}

	if hasInv && inverse != ^raw.Header.Length&widthMask(width) {
		return Raw{}, Corrupt, ReasonLengthMismatch
	}
	if int64(raw.Header.Length) < int64(l.LengthAdjust) {
		return Raw{}, Corrupt, ReasonLength
	}
	payloadLen := int64(raw.Header.Length) - int64(l.LengthAdjust)
	if payloadLen > int64(l.MaxPayload) {
		return Raw{}, Corrupt, ReasonLength
	}

	payloadEnd := hdrEnd + int(payloadLen)
	total := payloadEnd + l.TrailerLen()
	if len(view) < total {
		return Raw{}, Incomplete, 0
	}

	raw.Payload = view[hdrEnd:payloadEnd:payloadEnd]
	if !l.ChecksumInHeader() {
		raw.Stored = l.Endian.Uint(view[payloadEnd:total])
	}
	raw.Size = total
	raw.covered = coveredSegments(view, l, hdrEnd, payloadEnd)
	return raw, Ready, 0
}

func widthMask(width int) uint32 {
	if width >= 4 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<(8*width) - 1
}

// coveredSegments slices the checksummed regions out of a complete frame.
func coveredSegments(buf []byte, l Layout, payloadStart, payloadEnd int) [][]byte {
	payload := buf[payloadStart:payloadEnd]
	pos := len(l.Marker)

	if l.Scope == ScopeTagPayload {
		for _, f := range l.Header {
			if f.Kind == FieldTag {
				return [][]byte{buf[pos : pos+f.Width], payload}
			}
			pos += f.Width
		}
		return [][]byte{payload}
	}

	segs := make([][]byte, 0, 3)
	segStart := pos
	for _, f := range l.Header {
		if f.Kind == FieldChecksum {
			if pos > segStart {
				segs = append(segs, buf[segStart:pos])
			}
			segStart = pos + f.Width
		}
		pos += f.Width
	}
	if pos > segStart {
		segs = append(segs, buf[segStart:pos])
	}
	return append(segs, payload)
}
