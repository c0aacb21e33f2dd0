//go:build linux

package transport

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// Serial is a raw 8N1 serial port. The descriptor is non-blocking and owned
// by an os.File, so Close wakes a pending Read and never races it.
type Serial struct {
	f    *os.File
	port string
}

// OpenSerial opens port in raw mode at baud, 8 data bits, no parity, one
// stop bit.
func OpenSerial(port string, baud int) (*Serial, error) {
	speed, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}

	fd, err := unix.Open(port, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", port, err)
	}

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: get termios %s: %w", port, err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD | unix.CRTSCTS
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: set termios %s: %w", port, err)
	}
	return &Serial{f: os.NewFile(uintptr(fd), port), port: port}, nil
}

// Read blocks until bytes arrive or the port is closed. A hangup reads as
// io.EOF.
func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("transport: read %s: %w", s.port, err)
	}
	return n, err
}

// Close releases the port.
func (s *Serial) Close() error {
	return s.f.Close()
}

// Describe returns "serial:<port>".
func (s *Serial) Describe() string { return "serial:" + s.port }
