package runtime

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/rawzeo/decoder"
	"github.com/justapithecus/rawzeo/frame"
	"github.com/justapithecus/rawzeo/transport"
	"github.com/justapithecus/rawzeo/zeo"
)

func syntheticEngine(t *testing.T) *decoder.Engine {
	t.Helper()
	p, err := zeo.Lookup("synthetic")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	tbl, err := p.Table()
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	e, err := decoder.New(decoder.Config{Layout: p.Layout, Tags: tbl})
	if err != nil {
		t.Fatalf("decoder.New failed: %v", err)
	}
	return e
}

// eegFrame encodes an eeg_sample frame in the synthetic layout.
func eegFrame(t *testing.T, magnitude uint16) []byte {
	t.Helper()
	b, err := frame.Encode(zeo.SyntheticLayout(), frame.Header{Version: 1, Tag: 0x02}, []byte{byte(magnitude >> 8), byte(magnitude)})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return b
}

// corrupt flips the trailer so the frame fails its checksum.
func corrupt(b []byte) []byte {
	out := bytes.Clone(b)
	out[len(out)-1] ^= 0xFF
	return out
}

func source(name string, parts ...[]byte) transport.Source {
	return transport.FromReader(bytes.NewReader(bytes.Join(parts, nil)), name)
}

// failingReader returns data once, then err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

var errUnplugged = errors.New("device unplugged")

// idleSource behaves like a serial port with a read timeout: every read
// waits briefly and returns (0, nil), except that reads listed in data
// return those bytes. It records the buffer each read was given and counts
// reads that start after Close.
type idleSource struct {
	mu   sync.Mutex
	data map[int][]byte
	bufs [][]byte
	wait time.Duration

	closed     atomic.Bool
	afterClose atomic.Int64
}

func (s *idleSource) Read(p []byte) (int, error) {
	if s.closed.Load() {
		s.afterClose.Add(1)
	}
	s.mu.Lock()
	call := len(s.bufs)
	s.bufs = append(s.bufs, p)
	d := s.data[call]
	s.mu.Unlock()

	if d != nil {
		return copy(p, d), nil
	}
	time.Sleep(s.wait)
	return 0, nil
}

func (s *idleSource) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *idleSource) Describe() string { return "idle" }

func (s *idleSource) buffers() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.bufs)
}

var _ io.Reader = (*failingReader)(nil)
