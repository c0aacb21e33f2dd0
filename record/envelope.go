package record

import (
	"encoding/hex"
	"maps"
)

// Envelope is the emitted, serializable form of a record.
type Envelope struct {
	Kind      Kind   `json:"kind" yaml:"kind" msgpack:"kind"`
	Offset    int64  `json:"offset" yaml:"offset" msgpack:"offset"`
	Tag       uint8  `json:"tag" yaml:"tag" msgpack:"tag"`
	Version   uint8  `json:"version" yaml:"version" msgpack:"version"`
	Sequence  uint8  `json:"sequence" yaml:"sequence" msgpack:"sequence"`
	TimeLow   uint8  `json:"time_low" yaml:"time_low" msgpack:"time_low"`
	Subsecond uint16 `json:"subsecond" yaml:"subsecond" msgpack:"subsecond"`
	// Time is the reconstructed device time in seconds, when a clock is
	// tracking the stream.
	Time uint32         `json:"time,omitempty" yaml:"time,omitempty" msgpack:"time,omitempty"`
	Data map[string]any `json:"data" yaml:"data" msgpack:"data"`

	// Record is the source record. Not serialized.
	Record Record `json:"-" yaml:"-" msgpack:"-"`
}

// NewEnvelope wraps r.
func NewEnvelope(r Record) Envelope {
	m := r.Metadata()
	return Envelope{
		Kind:      r.Kind(),
		Offset:    m.Offset,
		Tag:       m.Tag,
		Version:   m.Version,
		Sequence:  m.Sequence,
		TimeLow:   m.TimeLow,
		Subsecond: m.Subsecond,
		Data:      Fields(r),
		Record:    r,
	}
}

// Map flattens the envelope for storage backends that persist maps.
func (e Envelope) Map() map[string]any {
	m := map[string]any{
		"kind":      string(e.Kind),
		"offset":    e.Offset,
		"tag":       e.Tag,
		"version":   e.Version,
		"sequence":  e.Sequence,
		"time_low":  e.TimeLow,
		"subsecond": e.Subsecond,
		"data":      maps.Clone(e.Data),
	}
	if e.Time != 0 {
		m["time"] = e.Time
	}
	return m
}

// Fields returns the variant-specific values of r keyed by field name.
func Fields(r Record) map[string]any {
	switch v := r.(type) {
	case EegSample:
		return map[string]any{"magnitude": v.Magnitude}
	case Waveform:
		return map[string]any{"samples": v.Samples, "count": len(v.Samples)}
	case FrequencyBins:
		m := make(map[string]any, BinCount)
		for i, p := range v.Bins {
			m[FrequencyBin(i).String()] = p
		}
		return m
	case SleepStageEvent:
		return map[string]any{"stage": v.Stage.String(), "code": uint8(v.Stage)}
	case DeviceEvent:
		return map[string]any{"event": v.Code.String(), "code": uint8(v.Code)}
	case BatteryStatus:
		return map[string]any{"percent": v.Percent, "charging": v.Charging}
	case SignalQuality:
		return map[string]any{"index": v.Index}
	case Impedance:
		return map[string]any{"in_phase": v.InPhase, "quadrature": v.Quadrature, "valid": v.Valid()}
	case BadSignal:
		return map[string]any{"artifact": v.Artifact}
	case Timestamp:
		return map[string]any{"seconds": v.Seconds}
	case ProtocolVersion:
		return map[string]any{"value": v.Value}
	case SliceEnd:
		return map[string]any{"value": v.Value}
	case Unrecognized:
		return map[string]any{"payload": hex.EncodeToString(v.Payload), "size": len(v.Payload)}
	}
	return map[string]any{}
}
