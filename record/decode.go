package record

import "fmt"

type decodeFunc func(meta Meta, r *payloadReader, n int) (Record, error)

// decoders is the closed Kind -> payload decoder table.
var decoders = map[Kind]decodeFunc{
	KindEegSample:       decodeEegSample,
	KindWaveform:        decodeWaveform,
	KindFrequencyBins:   decodeFrequencyBins,
	KindSleepStage:      decodeSleepStage,
	KindEvent:           decodeEvent,
	KindBatteryStatus:   decodeBattery,
	KindSignalQuality:   decodeSignalQuality,
	KindImpedance:       decodeImpedance,
	KindBadSignal:       decodeBadSignal,
	KindTimestamp:       decodeTimestamp,
	KindProtocolVersion: decodeProtocolVersion,
	KindSliceEnd:        decodeSliceEnd,
}

func sizeErr(n int, want string) error {
	return fmt.Errorf("%w: got %d bytes, want %s", ErrMalformed, n, want)
}

// byteScalar reads a one-byte value that may be padded to 2 or 4 bytes.
func byteScalar(r *payloadReader, n int) (uint8, error) {
	if n != 1 && n != 2 && n != 4 {
		return 0, sizeErr(n, "1, 2 or 4")
	}
	v, err := r.uint(n)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, fmt.Errorf("%w: value %d out of range", ErrMalformed, v)
	}
	return uint8(v), r.done()
}

func decodeEegSample(meta Meta, r *payloadReader, n int) (Record, error) {
	if n != 2 {
		return nil, sizeErr(n, "2")
	}
	v, err := r.s16()
	if err != nil {
		return nil, err
	}
	return EegSample{Meta: meta, Magnitude: v}, r.done()
}

func decodeWaveform(meta Meta, r *payloadReader, n int) (Record, error) {
	if n == 0 || n%2 != 0 {
		return nil, sizeErr(n, "a positive even count")
	}
	samples := make([]int16, n/2)
	for i := range samples {
		v, err := r.s16()
		if err != nil {
			return nil, err
		}
		samples[i] = v
	}
	return Waveform{Meta: meta, Samples: samples}, r.done()
}

func decodeFrequencyBins(meta Meta, r *payloadReader, n int) (Record, error) {
	if n != 2*BinCount {
		return nil, sizeErr(n, fmt.Sprint(2*BinCount))
	}
	rec := FrequencyBins{Meta: meta}
	for i := range rec.Bins {
		v, err := r.u16()
		if err != nil {
			return nil, err
		}
		rec.Bins[i] = v
	}
	return rec, r.done()
}

func decodeSleepStage(meta Meta, r *payloadReader, n int) (Record, error) {
	v, err := byteScalar(r, n)
	if err != nil {
		return nil, err
	}
	return SleepStageEvent{Meta: meta, Stage: SleepStage(v)}, nil
}

func decodeEvent(meta Meta, r *payloadReader, n int) (Record, error) {
	v, err := byteScalar(r, n)
	if err != nil {
		return nil, err
	}
	return DeviceEvent{Meta: meta, Code: EventCode(v)}, nil
}

func decodeBattery(meta Meta, r *payloadReader, n int) (Record, error) {
	if n != 1 && n != 2 {
		return nil, sizeErr(n, "1 or 2")
	}
	pct, err := r.u8()
	if err != nil {
		return nil, err
	}
	if pct > 100 {
		return nil, fmt.Errorf("%w: battery percent %d", ErrMalformed, pct)
	}
	rec := BatteryStatus{Meta: meta, Percent: pct}
	if n == 2 {
		flag, err := r.u8()
		if err != nil {
			return nil, err
		}
		rec.Charging = flag != 0
	}
	return rec, r.done()
}

func decodeSignalQuality(meta Meta, r *payloadReader, n int) (Record, error) {
	v, err := byteScalar(r, n)
	if err != nil {
		return nil, err
	}
	return SignalQuality{Meta: meta, Index: v}, nil
}

func decodeImpedance(meta Meta, r *payloadReader, n int) (Record, error) {
	if n != 4 {
		return nil, sizeErr(n, "4")
	}
	in, err := r.u16()
	if err != nil {
		return nil, err
	}
	quad, err := r.u16()
	if err != nil {
		return nil, err
	}
	return Impedance{
		Meta:       meta,
		InPhase:    int32(in) - impedanceBias,
		Quadrature: int32(quad) - impedanceBias,
	}, r.done()
}

func decodeBadSignal(meta Meta, r *payloadReader, n int) (Record, error) {
	v, err := byteScalar(r, n)
	if err != nil {
		return nil, err
	}
	return BadSignal{Meta: meta, Artifact: v != 0}, nil
}

func decodeTimestamp(meta Meta, r *payloadReader, n int) (Record, error) {
	// Some firmware sends only the low three bytes.
	if n != 3 && n != 4 {
		return nil, sizeErr(n, "3 or 4")
	}
	v, err := r.uint(n)
	if err != nil {
		return nil, err
	}
	return Timestamp{Meta: meta, Seconds: v}, r.done()
}

func decodeWord(r *payloadReader, n int) (uint32, error) {
	if n < 1 || n > 4 {
		return 0, sizeErr(n, "1 to 4")
	}
	v, err := r.uint(n)
	if err != nil {
		return 0, err
	}
	return v, r.done()
}

func decodeProtocolVersion(meta Meta, r *payloadReader, n int) (Record, error) {
	v, err := decodeWord(r, n)
	if err != nil {
		return nil, err
	}
	return ProtocolVersion{Meta: meta, Value: v}, nil
}

func decodeSliceEnd(meta Meta, r *payloadReader, n int) (Record, error) {
	v, err := decodeWord(r, n)
	if err != nil {
		return nil, err
	}
	return SliceEnd{Meta: meta, Value: v}, nil
}

func encodeRecord(w *payloadWriter, r Record, scalarWidth int) error {
	switch v := r.(type) {
	case EegSample:
		w.uint(2, uint32(uint16(v.Magnitude)))
	case Waveform:
		if len(v.Samples) == 0 {
			return fmt.Errorf("%w: empty waveform", ErrMalformed)
		}
		for _, s := range v.Samples {
			w.uint(2, uint32(uint16(s)))
		}
	case FrequencyBins:
		for _, b := range v.Bins {
			w.uint(2, uint32(b))
		}
	case SleepStageEvent:
		w.uint(scalarWidth, uint32(v.Stage))
	case DeviceEvent:
		w.uint(scalarWidth, uint32(v.Code))
	case BatteryStatus:
		if v.Percent > 100 {
			return fmt.Errorf("%w: battery percent %d", ErrMalformed, v.Percent)
		}
		charging := uint32(0)
		if v.Charging {
			charging = 1
		}
		w.uint(1, uint32(v.Percent))
		w.uint(1, charging)
	case SignalQuality:
		w.uint(scalarWidth, uint32(v.Index))
	case Impedance:
		w.uint(2, uint32(uint16(v.InPhase+impedanceBias)))
		w.uint(2, uint32(uint16(v.Quadrature+impedanceBias)))
	case BadSignal:
		flag := uint32(0)
		if v.Artifact {
			flag = 1
		}
		w.uint(scalarWidth, flag)
	case Timestamp:
		w.uint(4, v.Seconds)
	case ProtocolVersion:
		w.uint(4, v.Value)
	case SliceEnd:
		w.uint(4, v.Value)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, r)
	}
	return nil
}
