// Package zeo holds the protocol tables for the Zeo bedside base raw data
// output, plus a synthetic profile used for fixtures and tests.
//
// Zeo frames look like "A4" checksum len(2) ^len(2) time_low subsec(2) seq
// tag data..., little endian. The checksum is the byte sum of the tag and
// data, and the length counts the tag byte.
package zeo

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/rawzeo/frame"
	"github.com/justapithecus/rawzeo/record"
)

// BaudRate is the serial speed of the base (8N1).
const BaudRate = 38400

// Wire constants of the Zeo raw data protocol.
const (
	Marker     = 'A'
	Version    = '4'
	MaxPayload = 1024
)

// Zeo data type tags.
const (
	TagEvent         uint8 = 0x00
	TagSliceEnd      uint8 = 0x02
	TagVersion       uint8 = 0x03
	TagWaveform      uint8 = 0x80
	TagFrequencyBins uint8 = 0x83
	TagSQI           uint8 = 0x84
	TagTimestamp     uint8 = 0x8A
	TagImpedance     uint8 = 0x97
	TagBadSignal     uint8 = 0x9C
	TagSleepStage    uint8 = 0x9D
)

// Layout returns the Zeo frame layout.
func Layout() frame.Layout {
	return frame.Layout{
		Marker: []byte{Marker},
		Header: []frame.Field{
			{Kind: frame.FieldVersion, Width: 1},
			{Kind: frame.FieldChecksum, Width: 1},
			{Kind: frame.FieldLength, Width: 2},
			{Kind: frame.FieldLengthInverse, Width: 2},
			{Kind: frame.FieldTimeLow, Width: 1},
			{Kind: frame.FieldSubsecond, Width: 2},
			{Kind: frame.FieldSequence, Width: 1},
			{Kind: frame.FieldTag, Width: 1},
		},
		Checksum:     frame.Sum8,
		Scope:        frame.ScopeTagPayload,
		Endian:       frame.LittleEndian,
		LengthAdjust: 1,
		MaxPayload:   MaxPayload,
		Versions:     []uint8{Version},
	}
}

// Tags returns the Zeo tag binding. The base has no battery message.
func Tags() map[uint8]record.Kind {
	return map[uint8]record.Kind{
		TagEvent:         record.KindEvent,
		TagSliceEnd:      record.KindSliceEnd,
		TagVersion:       record.KindProtocolVersion,
		TagWaveform:      record.KindWaveform,
		TagFrequencyBins: record.KindFrequencyBins,
		TagSQI:           record.KindSignalQuality,
		TagTimestamp:     record.KindTimestamp,
		TagImpedance:     record.KindImpedance,
		TagBadSignal:     record.KindBadSignal,
		TagSleepStage:    record.KindSleepStage,
	}
}

// SyntheticLayout is a compact big-endian protocol: marker 0xAA, then
// version, tag and a 2-byte length, then payload and a sum8 trailer over
// header and payload.
func SyntheticLayout() frame.Layout {
	return frame.Layout{
		Marker: []byte{0xAA},
		Header: []frame.Field{
			{Kind: frame.FieldVersion, Width: 1},
			{Kind: frame.FieldTag, Width: 1},
			{Kind: frame.FieldLength, Width: 2},
		},
		Checksum:   frame.Sum8,
		Scope:      frame.ScopeHeaderPayload,
		Endian:     frame.BigEndian,
		MaxPayload: 512,
		Versions:   []uint8{1},
	}
}

// SyntheticTags binds every record kind, starting with eeg_sample on 0x02.
func SyntheticTags() map[uint8]record.Kind {
	return map[uint8]record.Kind{
		0x01: record.KindWaveform,
		0x02: record.KindEegSample,
		0x03: record.KindFrequencyBins,
		0x04: record.KindSleepStage,
		0x05: record.KindEvent,
		0x06: record.KindBatteryStatus,
		0x07: record.KindSignalQuality,
		0x08: record.KindImpedance,
		0x09: record.KindBadSignal,
		0x0A: record.KindTimestamp,
		0x0B: record.KindProtocolVersion,
		0x0C: record.KindSliceEnd,
	}
}

// ErrUnknownProfile is returned by Lookup for unregistered names.
var ErrUnknownProfile = errors.New("zeo: unknown profile")

// Profile is a named layout and tag binding.
type Profile struct {
	Name   string
	Layout frame.Layout
	Tags   map[uint8]record.Kind
	// ScalarWidth is the payload width of single-value records.
	ScalarWidth int
}

// Table builds the record table for the profile.
func (p Profile) Table() (*record.Table, error) {
	return record.NewTable(p.Tags, p.Layout.Endian, record.WithScalarWidth(p.ScalarWidth))
}

var profiles = map[string]func() Profile{
	"zeo": func() Profile {
		return Profile{Name: "zeo", Layout: Layout(), Tags: Tags(), ScalarWidth: 4}
	},
	"synthetic": func() Profile {
		return Profile{Name: "synthetic", Layout: SyntheticLayout(), Tags: SyntheticTags(), ScalarWidth: 1}
	},
}

// Lookup resolves a profile by name, case-insensitively.
func Lookup(name string) (Profile, error) {
	fn, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProfile, name, strings.Join(Names(), ", "))
	}
	return fn(), nil
}

// Names lists the registered profiles.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
