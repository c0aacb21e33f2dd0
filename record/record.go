// Package record defines the typed records produced by the decoder and the
// tag table that maps validated frame payloads to them.
package record

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the record type discriminator.
type Kind string

// Record kinds. The set is closed: tag tables can only bind to these.
const (
	KindEegSample       Kind = "eeg_sample"
	KindWaveform        Kind = "waveform"
	KindFrequencyBins   Kind = "frequency_bins"
	KindSleepStage      Kind = "sleep_stage"
	KindEvent           Kind = "event"
	KindBatteryStatus   Kind = "battery_status"
	KindSignalQuality   Kind = "signal_quality"
	KindImpedance       Kind = "impedance"
	KindBadSignal       Kind = "bad_signal"
	KindTimestamp       Kind = "timestamp"
	KindProtocolVersion Kind = "version"
	KindSliceEnd        Kind = "slice_end"
	// KindUnrecognized is produced for tags missing from the table. It
	// cannot be bound to a tag.
	KindUnrecognized Kind = "unrecognized"
)

// Kinds returns every bindable kind.
func Kinds() []Kind {
	return []Kind{
		KindEegSample,
		KindWaveform,
		KindFrequencyBins,
		KindSleepStage,
		KindEvent,
		KindBatteryStatus,
		KindSignalQuality,
		KindImpedance,
		KindBadSignal,
		KindTimestamp,
		KindProtocolVersion,
		KindSliceEnd,
	}
}

// ParseKind resolves a bindable kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := decoders[k]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var (
	// ErrMalformed reports a payload whose shape does not match its kind.
	ErrMalformed = errors.New("record: malformed payload")
	// ErrUnknownKind reports a kind outside the closed set.
	ErrUnknownKind = errors.New("record: unknown kind")
	// ErrDuplicateKind reports a kind bound to more than one tag.
	ErrDuplicateKind = errors.New("record: kind bound to multiple tags")
	// ErrNoTag reports an Encode of a kind the table does not bind.
	ErrNoTag = errors.New("record: no tag for kind")
)

// Meta is the frame context every record carries.
type Meta struct {
	// Offset is the absolute stream offset of the frame's marker.
	Offset    int64
	Version   uint8
	Tag       uint8
	Sequence  uint8
	TimeLow   uint8
	Subsecond uint16
}

// Metadata returns m. Embedding Meta gives every variant this method.
func (m Meta) Metadata() Meta { return m }

// Record is one decoded frame. Implementations are the variant types in
// this package.
type Record interface {
	Kind() Kind
	Metadata() Meta
	isRecord()
}

// EegSample is a single raw EEG magnitude.
type EegSample struct {
	Meta
	Magnitude int16
}

// Waveform is a block of raw time-domain samples.
type Waveform struct {
	Meta
	Samples []int16
}

// FrequencyBins holds the spectral power per band, indexed by FrequencyBin.
type FrequencyBins struct {
	Meta
	Bins [BinCount]uint16
}

// SleepStageEvent is the current 30 second sleep stage.
type SleepStageEvent struct {
	Meta
	Stage SleepStage
}

// DeviceEvent is a discrete base station event.
type DeviceEvent struct {
	Meta
	Code EventCode
}

// BatteryStatus reports charge level.
type BatteryStatus struct {
	Meta
	Percent  uint8
	Charging bool
}

// SignalQuality is the signal quality index of the current waveform.
type SignalQuality struct {
	Meta
	Index uint8
}

// Impedance holds headband impedance readings with the 0x8000 bias removed.
type Impedance struct {
	Meta
	InPhase    int32
	Quadrature int32
}

// impedanceInvalid is the in-phase value of the raw 0xFFFF sentinel.
const impedanceInvalid = 0xFFFF - impedanceBias

const impedanceBias = 0x8000

// Valid reports whether the reading is real rather than the "no contact"
// sentinel.
func (r Impedance) Valid() bool {
	return r.InPhase != impedanceInvalid
}

// BadSignal flags artifacts in the signal.
type BadSignal struct {
	Meta
	Artifact bool
}

// Timestamp is the device RTC in seconds.
type Timestamp struct {
	Meta
	Seconds uint32
}

// ProtocolVersion is the raw data output version.
type ProtocolVersion struct {
	Meta
	Value uint32
}

// SliceEnd marks the end of a data slice.
type SliceEnd struct {
	Meta
	Value uint32
}

// Unrecognized carries a frame whose tag the table does not bind.
type Unrecognized struct {
	Meta
	Payload []byte
}

func (EegSample) Kind() Kind       { return KindEegSample }
func (Waveform) Kind() Kind        { return KindWaveform }
func (FrequencyBins) Kind() Kind   { return KindFrequencyBins }
func (SleepStageEvent) Kind() Kind { return KindSleepStage }
func (DeviceEvent) Kind() Kind     { return KindEvent }
func (BatteryStatus) Kind() Kind   { return KindBatteryStatus }
func (SignalQuality) Kind() Kind   { return KindSignalQuality }
func (Impedance) Kind() Kind       { return KindImpedance }
func (BadSignal) Kind() Kind       { return KindBadSignal }
func (Timestamp) Kind() Kind       { return KindTimestamp }
func (ProtocolVersion) Kind() Kind { return KindProtocolVersion }
func (SliceEnd) Kind() Kind        { return KindSliceEnd }
func (Unrecognized) Kind() Kind    { return KindUnrecognized }

func (EegSample) isRecord()       {}
func (Waveform) isRecord()        {}
func (FrequencyBins) isRecord()   {}
func (SleepStageEvent) isRecord() {}
func (DeviceEvent) isRecord()     {}
func (BatteryStatus) isRecord()   {}
func (SignalQuality) isRecord()   {}
func (Impedance) isRecord()       {}
func (BadSignal) isRecord()       {}
func (Timestamp) isRecord()       {}
func (ProtocolVersion) isRecord() {}
func (SliceEnd) isRecord()        {}
func (Unrecognized) isRecord()    {}
