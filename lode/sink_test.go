package lode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/policy"
	"github.com/justapithecus/rawzeo/record"
)

func TestSink_DelegatesToClient(t *testing.T) {
	client := NewStubClient()
	sink := NewSink(client)

	batch := []record.Envelope{envelope(record.KindTimestamp, 0, nil)}
	if err := sink.WriteRecords(t.Context(), batch); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}
	if len(client.Batches) != 1 || len(client.Batches[0]) != 1 {
		t.Errorf("client batches = %v", client.Batches)
	}
	if err := sink.Close(); err != nil || !client.Closed {
		t.Errorf("Close() = %v, closed = %v", err, client.Closed)
	}
}

func TestInstrumentedSink_CountsPerCall(t *testing.T) {
	collector := metrics.NewCollector("zeo", "strict", "memory", "s-1")
	inner := policy.NewStubSink()
	sink := NewInstrumentedSink(inner, collector)

	batch := []record.Envelope{envelope(record.KindEvent, 0, nil), envelope(record.KindEvent, 8, nil)}
	_ = sink.WriteRecords(t.Context(), batch)
	_ = sink.WriteRecords(t.Context(), batch)
	inner.SetError(errors.New("down"))
	if err := sink.WriteRecords(t.Context(), batch); err == nil {
		t.Fatal("expected failure")
	}

	snap := collector.Snapshot()
	if snap.LodeWriteSuccess != 2 || snap.LodeWriteFailure != 1 {
		t.Errorf("success/failure = %d/%d, want 2/1", snap.LodeWriteSuccess, snap.LodeWriteFailure)
	}
	if err := sink.Close(); err != nil || !inner.Stats().Closed {
		t.Errorf("Close should delegate")
	}
}

func TestLodeClient_PutFile(t *testing.T) {
	store := lode.NewMemory()
	client, err := NewLodeClientWithFactory(testConfig("s-3"), sharedFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	data := []byte{'A', '4', 0x01}
	if err := client.PutFile(t.Context(), "capture.bin", "application/octet-stream", data); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}

	path := client.FilePath("capture.bin")
	want := "datasets/rawzeo/partitions/device=bedside/day=2026-10-14/session_id=s-3/files/capture.bin"
	if path != want {
		t.Errorf("FilePath = %q, want %q", path, want)
	}
	rc, err := store.Get(t.Context(), path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer func() { _ = rc.Close() }()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, data) {
		t.Errorf("stored % X, want % X", got, data)
	}
}

func TestLodeClient_PutFile_InvalidName(t *testing.T) {
	client, err := NewLodeClientWithFactory(testConfig("s-3"), lode.NewMemoryFactory())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", "../x", "a/b", `a\b`} {
		if err := client.PutFile(t.Context(), name, "", nil); !errors.Is(err, ErrInvalidFilename) {
			t.Errorf("PutFile(%q) = %v, want ErrInvalidFilename", name, err)
		}
	}
}

// flakyClient returns err from its first failures writes.
type flakyClient struct {
	*StubClient
	failures int
	err      error
	calls    int
}

func (c *flakyClient) WriteRecords(ctx context.Context, records []record.Envelope) error {
	c.calls++
	if c.calls <= c.failures {
		return c.err
	}
	return c.StubClient.WriteRecords(ctx, records)
}

func TestSink_WithRetries(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		failures  int
		err       error
		wantErr   bool
		wantCalls int
	}{
		{"no retries fails at once", 0, 1, WrapWriteError(errors.New("SlowDown"), "p"), true, 1},
		{"transient recovers", 3, 2, WrapWriteError(errors.New("SlowDown"), "p"), false, 3},
		{"transient exhausts", 2, 5, WrapWriteError(errors.New("i/o timeout"), "p"), true, 3},
		{"permanent not retried", 3, 1, WrapWriteError(errors.New("permission denied"), "p"), true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &flakyClient{StubClient: NewStubClient(), failures: tt.failures, err: tt.err}
			sink := NewSink(client).WithRetries(tt.retries, time.Millisecond)

			err := sink.WriteRecords(t.Context(), []record.Envelope{envelope(record.KindEvent, 0, nil)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("WriteRecords() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tt.err) {
				t.Errorf("WriteRecords() error = %v, want %v", err, tt.err)
			}
			if client.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", client.calls, tt.wantCalls)
			}
		})
	}
}

func TestSink_WithRetries_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	client := &flakyClient{StubClient: NewStubClient(), failures: 10, err: WrapWriteError(errors.New("SlowDown"), "p")}
	sink := NewSink(client).WithRetries(5, time.Hour)

	if err := sink.WriteRecords(ctx, []record.Envelope{envelope(record.KindEvent, 0, nil)}); err == nil {
		t.Fatal("WriteRecords() on canceled context succeeded")
	}
	if client.calls > 1 {
		t.Errorf("calls = %d, want at most 1", client.calls)
	}
}
