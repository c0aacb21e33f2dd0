package record

import "fmt"

// SleepStage is the device's 30 second sleep classification. Values outside
// the known set are kept as-is.
type SleepStage uint8

const (
	StageUndefined SleepStage = 0x00
	StageAwake     SleepStage = 0x01
	StageREM       SleepStage = 0x02
	StageLight     SleepStage = 0x03
	StageDeep      SleepStage = 0x04
)

func (s SleepStage) String() string {
	switch s {
	case StageUndefined:
		return "Undefined"
	case StageAwake:
		return "Awake"
	case StageREM:
		return "REM"
	case StageLight:
		return "Light"
	case StageDeep:
		return "Deep"
	}
	return fmt.Sprintf("Invalid(%d)", uint8(s))
}

// Known reports whether s is one of the defined stages.
func (s SleepStage) Known() bool {
	return s <= StageDeep
}

// EventCode identifies a base station event.
type EventCode uint8

const (
	EventNightStart       EventCode = 0x05
	EventSleepOnset       EventCode = 0x07
	EventHeadbandDocked   EventCode = 0x0E
	EventHeadbandUndocked EventCode = 0x0F
	EventAlarmOff         EventCode = 0x10
	EventAlarmSnooze      EventCode = 0x11
	EventAlarmPlay        EventCode = 0x13
	EventNightEnd         EventCode = 0x15
	EventNewHeadband      EventCode = 0x24
)

var eventNames = map[EventCode]string{
	EventNightStart:       "NightStart",
	EventSleepOnset:       "SleepOnset",
	EventHeadbandDocked:   "HeadbandDocked",
	EventHeadbandUndocked: "HeadbandUndocked",
	EventAlarmOff:         "AlarmOff",
	EventAlarmSnooze:      "AlarmSnooze",
	EventAlarmPlay:        "AlarmPlay",
	EventNightEnd:         "NightEnd",
	EventNewHeadband:      "NewHeadband",
}

func (c EventCode) String() string {
	if name, ok := eventNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Invalid(%d)", uint8(c))
}

// Known reports whether c is a defined event.
func (c EventCode) Known() bool {
	_, ok := eventNames[c]
	return ok
}

// FrequencyBin indexes FrequencyBins.Bins in wire order.
type FrequencyBin int

const (
	BinDelta FrequencyBin = iota
	BinTheta
	BinAlpha
	BinBetaMid
	BinBetaHigh
	BinBetaLow
	BinGamma

	// BinCount is the number of bands in a FrequencyBins payload.
	BinCount = 7
)

var binNames = [BinCount]string{"delta", "theta", "alpha", "beta_mid", "beta_high", "beta_low", "gamma"}

var binHz = [BinCount][2]uint8{
	{2, 4},
	{4, 8},
	{8, 13},
	{13, 18},
	{18, 21},
	{11, 14}, // sleep spindles
	{30, 50},
}

func (b FrequencyBin) String() string {
	if b < 0 || b >= BinCount {
		return fmt.Sprintf("Invalid(%d)", int(b))
	}
	return binNames[b]
}

// Hz returns the band's lower and upper bound in Hz, (0, 0) when invalid.
func (b FrequencyBin) Hz() (lo, hi uint8) {
	if b < 0 || b >= BinCount {
		return 0, 0
	}
	return binHz[b][0], binHz[b][1]
}

// Bin returns the power of one band.
func (r FrequencyBins) Bin(b FrequencyBin) uint16 {
	if b < 0 || b >= BinCount {
		return 0
	}
	return r.Bins[b]
}
