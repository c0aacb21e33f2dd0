//go:build !linux

package transport

// Serial is unavailable on this platform.
type Serial struct {
	port string
}

// OpenSerial always fails with ErrSerialUnsupported.
func OpenSerial(port string, _ int) (*Serial, error) {
	return nil, ErrSerialUnsupported
}

func (s *Serial) Read([]byte) (int, error) { return 0, ErrSerialUnsupported }

func (s *Serial) Close() error { return nil }

// Describe returns "serial:<port>".
func (s *Serial) Describe() string { return "serial:" + s.port }
