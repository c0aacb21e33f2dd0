package frame

import "bytes"

// ScanResult is the outcome of a marker search.
type ScanResult int

const (
	// NotFound means no marker and no marker prefix from the scan start.
	NotFound ScanResult = iota
	// Found means a complete marker starts at the returned position.
	Found
	// Partial means a strict prefix of the marker occupies the tail of the
	// view from the returned position. The caller must wait for more bytes.
	Partial
)

func (r ScanResult) String() string {
	switch r {
	case Found:
		return "found"
	case Partial:
		return "partial"
	default:
		return "not_found"
	}
}

// Scan looks for marker in view starting at from.
//
// Found returns the marker position. Partial returns the position of the
// longest trailing marker prefix. NotFound returns len(view): every byte
// before that position can be discarded.
func Scan(view []byte, from int, marker []byte) (int, ScanResult) {
	if from < 0 {
		from = 0
	}
	if from >= len(view) || len(marker) == 0 {
		return len(view), NotFound
	}

	if i := bytes.Index(view[from:], marker); i >= 0 {
		return from + i, Found
	}

	// A full match is impossible within the last len(marker)-1 bytes, so
	// check those for the longest prefix of the marker.
	longest := min(len(marker)-1, len(view)-from)
	for k := longest; k > 0; k-- {
		if bytes.Equal(view[len(view)-k:], marker[:k]) {
			return len(view) - k, Partial
		}
	}
	return len(view), NotFound
}
