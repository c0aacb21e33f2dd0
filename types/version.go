package types

// Version is the canonical project version, reported by `rawzeo version`
// and stamped into session reports.
const Version = "0.3.0"
