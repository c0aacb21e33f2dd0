package lode

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/record"
)

func TestLodeClient_WriteAndQueryRecords(t *testing.T) {
	factory := sharedFactory(lode.NewMemory())
	client, err := NewLodeClientWithFactory(testConfig("s-1"), factory)
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	batch := []record.Envelope{
		envelope(record.KindSleepStage, 10, map[string]any{"stage": "Deep"}),
		envelope(record.KindEegSample, 30, map[string]any{"magnitude": 12}),
		envelope(record.KindSleepStage, 50, map[string]any{"stage": "REM"}),
	}
	if err := client.WriteRecords(t.Context(), batch); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	ds, err := NewReadDataset("rawzeo", factory)
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}

	tests := []struct {
		name        string
		filter      Filter
		wantOffsets []int64
	}{
		{"all", Filter{}, []int64{10, 30, 50}},
		{"by kind", Filter{Kinds: []string{"sleep_stage"}}, []int64{10, 50}},
		{"by session", Filter{SessionID: "s-1"}, []int64{10, 30, 50}},
		{"other session", Filter{SessionID: "s-10"}, nil},
		{"limit", Filter{Limit: 2}, []int64{10, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := QueryRecords(t.Context(), ds, tt.filter)
			if err != nil {
				t.Fatalf("QueryRecords failed: %v", err)
			}
			if len(recs) != len(tt.wantOffsets) {
				t.Fatalf("got %d records, want %d", len(recs), len(tt.wantOffsets))
			}
			for i, rec := range recs {
				if got := toInt64(rec["offset"]); got != tt.wantOffsets[i] {
					t.Errorf("record %d offset = %d, want %d", i, got, tt.wantOffsets[i])
				}
				if rec["device"] != "bedside" || rec["profile"] != "zeo" {
					t.Errorf("record %d partition fields = %v/%v", i, rec["device"], rec["profile"])
				}
			}
		})
	}
}

func TestNewLodeClient_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "store")

	client, err := NewLodeClient(testConfig("s-fs"), root)
	if err != nil {
		t.Fatalf("NewLodeClient failed: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}

	batch := []record.Envelope{envelope(record.KindSleepStage, 7, map[string]any{"stage": "Light"})}
	if err := client.WriteRecords(t.Context(), batch); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	ds, err := NewReadDataset("rawzeo", lode.NewFSFactory(root))
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}
	recs, err := QueryRecords(t.Context(), ds, Filter{SessionID: "s-fs"})
	if err != nil {
		t.Fatalf("QueryRecords failed: %v", err)
	}
	if len(recs) != 1 || toInt64(recs[0]["offset"]) != 7 {
		t.Errorf("records = %v, want one at offset 7", recs)
	}
}

func TestNewLodeClient_RootIsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLodeClient(testConfig("s-fs"), root); err == nil {
		t.Error("NewLodeClient succeeded with a file as root")
	}
}

func TestLodeClient_WriteRecords_Empty(t *testing.T) {
	store := &FailingStore{PutErr: errors.New("must not be called")}
	client, err := NewLodeClientWithFactory(testConfig("s-1"), sharedFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	if err := client.WriteRecords(t.Context(), nil); err != nil {
		t.Errorf("WriteRecords(nil) = %v", err)
	}
	if store.PutCalls != 0 {
		t.Errorf("PutCalls = %d, want 0", store.PutCalls)
	}
}

func TestLodeClient_Defaults(t *testing.T) {
	client, err := NewLodeClientWithFactory(Config{SessionID: "s"}, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	cfg := client.Config()
	if cfg.Dataset != DefaultDataset || cfg.Device != DefaultDevice {
		t.Errorf("defaults = %q/%q", cfg.Dataset, cfg.Device)
	}
}

func TestLodeClient_WriteMetrics_QueryLatest(t *testing.T) {
	factory := sharedFactory(lode.NewMemory())

	completedAt := time.Date(2026, 10, 14, 7, 30, 0, 0, time.UTC)
	for i, session := range []string{"s-1", "s-2"} {
		client, err := NewLodeClientWithFactory(testConfig(session), factory)
		if err != nil {
			t.Fatalf("NewLodeClientWithFactory failed: %v", err)
		}
		snap := metrics.Snapshot{
			SessionsStarted: 1,
			FramesAccepted:  int64(100 * (i + 1)),
			RecordsByKind:   map[string]int64{"waveform": 5},
			Profile:         "zeo",
		}
		if err := client.WriteMetrics(t.Context(), snap, completedAt.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("WriteMetrics failed: %v", err)
		}
	}

	ds, err := NewReadDataset("rawzeo", factory)
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}

	latest, err := QueryLatestMetrics(t.Context(), ds, "", "")
	if err != nil {
		t.Fatalf("QueryLatestMetrics failed: %v", err)
	}
	if latest["session_id"] != "s-2" || toInt64(latest["frames_accepted"]) != 200 {
		t.Errorf("latest = %v/%v, want s-2/200", latest["session_id"], latest["frames_accepted"])
	}

	first, err := QueryLatestMetrics(t.Context(), ds, "s-1", "")
	if err != nil {
		t.Fatalf("QueryLatestMetrics(s-1) failed: %v", err)
	}
	if toInt64(first["frames_accepted"]) != 100 {
		t.Errorf("s-1 frames_accepted = %v, want 100", first["frames_accepted"])
	}

	// Metrics records are not returned as decoded records.
	recs, err := QueryRecords(t.Context(), ds, Filter{})
	if err != nil {
		t.Fatalf("QueryRecords failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("QueryRecords returned %d metrics rows", len(recs))
	}
}

func TestQueryLatestMetrics_NotFound(t *testing.T) {
	ds, err := NewReadDataset("rawzeo", lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewReadDataset failed: %v", err)
	}
	if _, err := QueryLatestMetrics(t.Context(), ds, "", ""); !errors.Is(err, ErrNoMetricsFound) {
		t.Errorf("expected ErrNoMetricsFound, got %v", err)
	}
}

func TestLodeClient_WriteFailure_Classified(t *testing.T) {
	tests := []struct {
		name     string
		putErr   error
		wantKind error
	}{
		{"disk full", errors.New("write /data/rawzeo/part.jsonl: no space left on device"), ErrDiskFull},
		{"permission", errors.New("open /data: permission denied"), ErrPermissionDenied},
		{"throttled", errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{"network", errors.New("dial tcp 10.0.0.1:443: connection refused"), ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &FailingStore{PutErr: tt.putErr}
			client, err := NewLodeClientWithFactory(testConfig("s-1"), sharedFactory(store))
			if err != nil {
				t.Fatalf("NewLodeClientWithFactory failed: %v", err)
			}

			err = client.WriteRecords(t.Context(), []record.Envelope{envelope(record.KindEvent, 0, nil)})
			if err == nil {
				t.Fatal("expected write error")
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("errors.Is(err, %v) = false: %v", tt.wantKind, err)
			}
			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Fatalf("expected *StorageError, got %T", err)
			}
			if storageErr.Op != "write" {
				t.Errorf("Op = %q, want write", storageErr.Op)
			}
			if store.PutCalls == 0 {
				t.Error("expected a put attempt")
			}
		})
	}
}

func TestToRecordMap(t *testing.T) {
	e := envelope(record.KindSleepStage, 42, map[string]any{"stage": "Light"})
	e.Time = 1700000000
	m := toRecordMap(e, testConfig("s-9"))

	want := map[string]any{
		"record_kind": RecordKindRecord,
		"kind":        "sleep_stage",
		"device":      "bedside",
		"day":         "2026-10-14",
		"session_id":  "s-9",
		"profile":     "zeo",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
	if m["offset"] != int64(42) || m["time"] != uint32(1700000000) {
		t.Errorf("offset/time = %v/%v", m["offset"], m["time"])
	}
}

func TestDeriveDay(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	got := DeriveDay(time.Date(2026, 10, 13, 22, 0, 0, 0, loc))
	if got != "2026-10-14" {
		t.Errorf("DeriveDay = %q, want 2026-10-14", got)
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); !errors.Is(err, ErrNoBucket) {
		t.Errorf("Validate() = %v, want ErrNoBucket", err)
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/prefix", "bucket", "prefix"},
		{"bucket/a/b", "bucket", "a/b"},
		{"s3://nightly/captures/", "nightly", "captures"},
		{"s3://nightly", "nightly", ""},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.path)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.path, b, p)
		}
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	path := "datasets/rawzeo/partitions/device=zeo/day=2026-10-14/session_id=s-10/kind=waveform/part.jsonl"
	if !matchesPartitionValue(path, "session_id", "s-10") {
		t.Error("exact segment should match")
	}
	if matchesPartitionValue(path, "session_id", "s-1") {
		t.Error("prefix of a segment must not match")
	}
}
