// Package transport supplies raw bytes to the decoder: a serial port, replay
// files captured earlier, or any reader.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrSerialUnsupported is returned by OpenSerial on platforms without
	// termios support.
	ErrSerialUnsupported = errors.New("transport: serial ports are not supported on this platform")
	// ErrUnsupportedBaud is returned for baud rates the port cannot be set to.
	ErrUnsupportedBaud = errors.New("transport: unsupported baud rate")
	// ErrNoSource is returned by Open when neither a port nor replay files
	// are configured.
	ErrNoSource = errors.New("transport: no port or replay file configured")
)

const (
	// DefaultReadSize is the read buffer size used by sessions and Capture.
	DefaultReadSize = 4096
	// DefaultBaud is used when Config.Baud is zero.
	DefaultBaud = 38400
)

// Source is a byte stream with a human-readable origin.
//
// A read that returns (0, nil) is not end of stream. Replay sources return
// io.EOF at the end of the file; serial sources block until bytes arrive or
// the port is closed.
type Source interface {
	io.ReadCloser
	Describe() string
}

// Config selects the sources of a session.
type Config struct {
	Port     string
	Baud     int
	Replay   []string
	ReadSize int
}

// Open opens the configured sources. A port takes precedence over replay
// files. Replay files are returned in order; on error, already opened
// sources are closed.
func Open(cfg Config) ([]Source, error) {
	if cfg.Port != "" {
		baud := cfg.Baud
		if baud == 0 {
			baud = DefaultBaud
		}
		s, err := OpenSerial(cfg.Port, baud)
		if err != nil {
			return nil, err
		}
		return []Source{s}, nil
	}
	if len(cfg.Replay) == 0 {
		return nil, ErrNoSource
	}

	sources := make([]Source, 0, len(cfg.Replay))
	for _, path := range cfg.Replay {
		r, err := OpenReplay(path)
		if err != nil {
			for _, s := range sources {
				_ = s.Close()
			}
			return nil, err
		}
		sources = append(sources, r)
	}
	return sources, nil
}

// Replay reads a capture file.
type Replay struct {
	*os.File
	path string
}

// OpenReplay opens a capture file for reading.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transport: open replay: %w", err)
	}
	return &Replay{File: f, path: path}, nil
}

// Describe returns "replay:<path>".
func (r *Replay) Describe() string { return "replay:" + r.path }

// reader adapts a plain io.Reader.
type reader struct {
	io.Reader
	name string
}

func (r reader) Close() error {
	if c, ok := r.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r reader) Describe() string { return r.name }

// FromReader wraps r as a Source. Close closes r when it is an io.Closer.
func FromReader(r io.Reader, name string) Source {
	return reader{Reader: r, name: name}
}

// Capture copies raw bytes from src to w until src ends, fails, or ctx is
// canceled. Zero-byte reads are retried. When src is also an io.Closer it is
// closed as soon as ctx ends, which wakes a read blocked on an idle port. It
// returns the number of bytes written; a clean end of src is not an error.
func Capture(ctx context.Context, src io.Reader, w io.Writer) (int64, error) {
	if c, ok := src.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	buf := make([]byte, DefaultReadSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, fmt.Errorf("transport: capture write: %w", werr)
			}
		}
		if err != nil && ctx.Err() != nil {
			return total, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("transport: capture read: %w", err)
		}
	}
}
