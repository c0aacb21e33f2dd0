package frame

import (
	"errors"
	"fmt"
)

// Layout configuration errors.
var (
	ErrEmptyMarker      = errors.New("frame: marker must not be empty")
	ErrUnknownField     = errors.New("frame: unknown header field")
	ErrUnknownAlgorithm = errors.New("frame: unknown checksum algorithm")
	ErrUnknownScope     = errors.New("frame: unknown checksum scope")
	ErrUnknownEndian    = errors.New("frame: unknown byte order")
	ErrDuplicateField   = errors.New("frame: duplicate header field")
	ErrMissingField     = errors.New("frame: required header field missing")
	ErrFieldWidth       = errors.New("frame: invalid field width")
	ErrNoVersions       = errors.New("frame: version field without accepted versions")
	ErrLengthAdjust     = errors.New("frame: negative length adjust")
	ErrMaxPayload       = errors.New("frame: max payload out of range")
	ErrChecksumWindow   = errors.New("frame: checksum wider than its minimum window")
)

// ErrPayloadTooLarge is returned by Encode for payloads above MaxPayload.
var ErrPayloadTooLarge = errors.New("frame: payload exceeds max payload")

// LayoutError reports an invalid Layout. It is always a construction-time
// failure; no bytes have been processed when it is returned.
type LayoutError struct {
	Field string
	Err   error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("frame: invalid layout: %s: %v", e.Field, e.Err)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

func layoutErr(field string, err error) error {
	return &LayoutError{Field: field, Err: err}
}

// IsLayoutError returns true if err is or wraps a *LayoutError.
func IsLayoutError(err error) bool {
	var layoutErr *LayoutError
	return errors.As(err, &layoutErr)
}

// Reason classifies why a candidate frame, or a run of bytes, was rejected.
type Reason int

const (
	// ReasonChecksum is an integrity check mismatch.
	ReasonChecksum Reason = iota + 1
	// ReasonVersion is a version outside the accepted set.
	ReasonVersion
	// ReasonLength is a declared length below the adjust or above the
	// maximum payload.
	ReasonLength
	// ReasonLengthMismatch is a length field that disagrees with its
	// inverse.
	ReasonLengthMismatch
	// ReasonMalformed is a payload the record decoder could not parse.
	ReasonMalformed
	// ReasonOverflow is byte loss in the reservoir.
	ReasonOverflow
)

var reasonNames = map[Reason]string{
	ReasonChecksum:       "checksum",
	ReasonVersion:        "version",
	ReasonLength:         "length",
	ReasonLengthMismatch: "length_mismatch",
	ReasonMalformed:      "malformed",
	ReasonOverflow:       "overflow",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Reasons returns every reason in declaration order.
func Reasons() []Reason {
	return []Reason{
		ReasonChecksum,
		ReasonVersion,
		ReasonLength,
		ReasonLengthMismatch,
		ReasonMalformed,
		ReasonOverflow,
	}
}
