package frame

// Validate checks an assembled frame's checksum and then its version.
// It returns false with the rejection reason when the frame must be
// discarded.
func Validate(raw Raw, l Layout) (Reason, bool) {
	if l.Checksum.Compute(raw.covered...) != raw.Stored {
		return ReasonChecksum, false
	}
	if !l.AcceptsVersion(raw.Header.Version) {
		return ReasonVersion, false
	}
	return 0, true
}
