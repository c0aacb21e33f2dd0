package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_NoSource(t *testing.T) {
	if _, err := Open(Config{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("Open() error = %v, want ErrNoSource", err)
	}
}

func TestOpen_Replay(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(a, []byte{1, 2}, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte{3}, 0o600); err != nil {
		t.Fatal(err)
	}

	sources, err := Open(Config{Replay: []string{a, b}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sources))
	}
	defer func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}()

	if got := sources[0].Describe(); got != "replay:"+a {
		t.Errorf("Describe() = %q", got)
	}
	data, err := io.ReadAll(sources[1])
	if err != nil || !bytes.Equal(data, []byte{3}) {
		t.Errorf("ReadAll = %v, %v", data, err)
	}
}

func TestOpen_ReplayMissing(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.bin")
	if err := os.WriteFile(ok, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Open(Config{Replay: []string{ok, filepath.Join(dir, "missing.bin")}})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want ErrNotExist", err)
	}
}

func TestOpenSerial_Errors(t *testing.T) {
	if _, err := OpenSerial("/dev/does-not-exist", 38400); err == nil {
		t.Error("OpenSerial() on a missing device succeeded")
	}
}

// timeoutReader returns (0, nil) before each chunk, like a polling reader
// with nothing ready.
type timeoutReader struct {
	chunks [][]byte
	idle   bool
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	if r.idle = !r.idle; r.idle {
		return 0, nil
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestCapture(t *testing.T) {
	src := &timeoutReader{chunks: [][]byte{{'A', '4'}, {0x01}, {0x02, 0x03}}}
	var out bytes.Buffer

	n, err := Capture(t.Context(), src, &out)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if n != 5 || !bytes.Equal(out.Bytes(), []byte{'A', '4', 1, 2, 3}) {
		t.Errorf("Capture() = %d, % X", n, out.Bytes())
	}
}

func TestCapture_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := Capture(ctx, bytes.NewReader([]byte{1}), io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Capture() error = %v, want context.Canceled", err)
	}
}

func TestCapture_CancelWakesBlockedRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := Capture(ctx, pr, io.Discard)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Capture() error = %v, want context.DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Capture() still blocked after its context ended")
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCapture_WriteError(t *testing.T) {
	_, err := Capture(t.Context(), bytes.NewReader([]byte{1, 2}), failWriter{})
	if err == nil {
		t.Error("Capture() with failing writer succeeded")
	}
}

func TestFromReader(t *testing.T) {
	s := FromReader(bytes.NewReader([]byte{1}), "stdin")
	if s.Describe() != "stdin" {
		t.Errorf("Describe() = %q", s.Describe())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
