package zeo

import "github.com/justapithecus/rawzeo/record"

// ClockMatch describes how a timestamp was reconciled with the frame's
// time_low byte.
type ClockMatch int

const (
	// MatchNone means no timestamp has been seen.
	MatchNone ClockMatch = iota
	// MatchExact means the RTC low byte equals time_low.
	MatchExact
	// MatchBehind means time_low matches RTC-1.
	MatchBehind
	// MatchAhead means time_low matches RTC+1.
	MatchAhead
	// MatchReset means nothing lined up; the RTC value was taken as-is,
	// usually after the base was reset.
	MatchReset
)

func (m ClockMatch) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchBehind:
		return "behind"
	case MatchAhead:
		return "ahead"
	case MatchReset:
		return "reset"
	}
	return "none"
}

// Clock rebuilds full device time. Timestamp records carry the RTC value
// from slightly before or after the frame was sent; the frame's time_low
// byte pins which second it belongs to.
//
// Clock is not safe for concurrent use.
type Clock struct {
	full  uint32
	valid bool
	last  ClockMatch
}

// Observe feeds a record and returns the device time, in seconds, that the
// record belongs to. It returns false until a timestamp has been seen.
func (c *Clock) Observe(r record.Record) (uint32, bool) {
	if ts, ok := r.(record.Timestamp); ok {
		c.sync(ts.Seconds, ts.TimeLow)
		return c.full, true
	}
	return c.full, c.valid
}

func (c *Clock) sync(rtc uint32, low uint8) {
	c.valid = true
	switch {
	case uint8(rtc) == low:
		c.full, c.last = rtc, MatchExact
	case rtc > 0 && uint8(rtc-1) == low:
		c.full, c.last = rtc-1, MatchBehind
	case rtc < ^uint32(0) && uint8(rtc+1) == low:
		c.full, c.last = rtc+1, MatchAhead
	default:
		c.full, c.last = rtc, MatchReset
	}
}

// Now returns the last reconstructed time.
func (c *Clock) Now() (uint32, bool) {
	return c.full, c.valid
}

// LastMatch reports how the most recent timestamp was reconciled.
func (c *Clock) LastMatch() ClockMatch {
	return c.last
}

// Reset forgets the reconstructed time.
func (c *Clock) Reset() {
	*c = Clock{}
}

// Subsecond converts the frame sub-second counter to a fraction of a second.
// The base counts up to about 16 per second.
func Subsecond(ss uint16) float64 {
	if ss == 0 {
		return 0
	}
	return float64(ss-1) / 15.0
}
