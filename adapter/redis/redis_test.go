package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/rawzeo/record"
)

func testBatch() []record.Envelope {
	return []record.Envelope{
		{Kind: record.KindTimestamp, Offset: 0, Tag: 0x8A, Sequence: 4, Data: map[string]any{"seconds": 1700000000}},
		{Kind: record.KindEvent, Offset: 19, Tag: 0x8B, Sequence: 5, Data: map[string]any{"event": "night_start"}},
	}
}

// receiveN starts a goroutine that reads n messages from the subscriber.
// Must be called BEFORE Publish to avoid deadlocking miniredis's synchronous
// pub/sub delivery.
func receiveN(sub *miniredis.Subscriber, n int) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, n)
	go func() {
		for range n {
			ch <- <-sub.Messages()
		}
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{} // unreachable
	}
}

func TestPublish_JSON(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := receiveN(sub, 2)

	if err := a.Publish(t.Context(), testBatch()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, want := range testBatch() {
		msg := waitMessage(t, ch)
		var got record.Envelope
		if err := json.Unmarshal([]byte(msg.Message), &got); err != nil {
			t.Fatalf("message %d unmarshal: %v", i, err)
		}
		if got.Kind != want.Kind || got.Offset != want.Offset || got.Sequence != want.Sequence {
			t.Errorf("message %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestPublish_Msgpack(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Encoding: EncodingMsgpack})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := receiveN(sub, 2)

	if err := a.Publish(t.Context(), testBatch()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = waitMessage(t, ch)
	msg := waitMessage(t, ch)
	var got record.Envelope
	if err := msgpack.Unmarshal([]byte(msg.Message), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != record.KindEvent || got.Offset != 19 {
		t.Errorf("got %+v", got)
	}
	if got.Data["event"] != "night_start" {
		t.Errorf("event = %v, want night_start", got.Data["event"])
	}
}

func TestPublish_CustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	customChannel := "bedside:records"

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: customChannel})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(customChannel)
	ch := receiveN(sub, 1)

	if err := a.Publish(t.Context(), testBatch()[:1]); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != customChannel {
		t.Errorf("expected channel %q, got %q", customChannel, msg.Channel)
	}
}

func TestPublish_ExhaustsRetries(t *testing.T) {
	// Use an address that won't connect
	a, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 2, Timeout: 100 * time.Millisecond, Backoff: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(t.Context(), testBatch()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	a, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 5, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	err = a.Publish(ctx, testBatch())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing URL", Config{}, ErrNoURL},
		{"unknown encoding", Config{URL: "redis://localhost:6379", Encoding: "cbor"}, ErrUnknownEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := New(Config{URL: "not-a-redis-url"}); err == nil {
		t.Error("expected error for invalid URL")
	}
	if _, err := New(Config{URL: "redis://localhost:6379", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.config.Channel != DefaultChannel {
		t.Errorf("expected default channel %q, got %q", DefaultChannel, a.config.Channel)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, a.config.Timeout)
	}
	if a.config.Encoding != EncodingJSON {
		t.Errorf("expected json encoding, got %q", a.config.Encoding)
	}
}

func TestClose_ClosesConnection(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Backoff: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Publish after close should fail
	if err := a.Publish(t.Context(), testBatch()); err == nil {
		t.Fatal("expected error after close")
	}
}
