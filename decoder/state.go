package decoder

import (
	"fmt"
	"maps"

	"github.com/justapithecus/rawzeo/frame"
)

// Phase is the engine's position in the frame state machine.
type Phase int

const (
	// Searching means no marker is confirmed at the head of the buffer.
	Searching Phase = iota
	// HeaderPending means a marker sits at the head and the engine is
	// waiting for the rest of the frame.
	HeaderPending
	// Validating means a complete frame is being checked and decoded.
	Validating
)

func (p Phase) String() string {
	switch p {
	case Searching:
		return "searching"
	case HeaderPending:
		return "header_pending"
	case Validating:
		return "validating"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a snapshot of the engine counters.
type State struct {
	Phase Phase
	// Buffered is the number of bytes held in the reservoir.
	Buffered int
	// Offset is the absolute stream offset of the first buffered byte.
	Offset int64
	// Garbage counts bytes skipped since the last accepted frame.
	Garbage int64
	// Accepted and Rejected count frames since construction or Reset.
	Accepted int64
	Rejected int64
	// Skipped counts bytes discarded while searching or resyncing.
	Skipped int64
	// Dropped counts bytes lost to reservoir overflow.
	Dropped int64
	// SequenceGaps counts frames missing from the sequence numbering.
	SequenceGaps int64
	LastSequence uint8
	HasSequence  bool
	// Rejections counts rejections per reason.
	Rejections map[frame.Reason]int64
}

func (s State) clone() State {
	s.Rejections = maps.Clone(s.Rejections)
	return s
}
