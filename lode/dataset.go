package lode

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
var ErrNoMetricsFound = errors.New("no metrics records found")

// NewReadDataset creates a Lode Dataset.
// The write path uses the same codec and layout.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewReadDatasetFS creates a read Dataset with filesystem storage.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// NewReadDatasetS3 creates a read Dataset with S3 storage.
func NewReadDatasetS3(ctx context.Context, dataset string, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// Filter selects stored records. Empty fields match everything.
type Filter struct {
	Device    string
	Day       string
	SessionID string
	Kinds     []string
	// Limit caps the number of records returned. Zero means no limit.
	Limit int
}

func (f Filter) snapshotMatches(snap *lode.DatasetSnapshot) bool {
	if !snapshotMatchesFilter(snap, "device", f.Device) ||
		!snapshotMatchesFilter(snap, "day", f.Day) ||
		!snapshotMatchesFilter(snap, "session_id", f.SessionID) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if snapshotMatchesFilter(snap, "kind", k) {
			return true
		}
	}
	return false
}

// recordMatches applies the filter to record fields. Manifest paths are a
// coarse pre-filter; record fields are authoritative.
func (f Filter) recordMatches(rec map[string]any) bool {
	if f.Device != "" && toString(rec["device"]) != f.Device {
		return false
	}
	if f.Day != "" && toString(rec["day"]) != f.Day {
		return false
	}
	if f.SessionID != "" && toString(rec["session_id"]) != f.SessionID {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, toString(rec["kind"])) {
		return false
	}
	return true
}

// QueryRecords reads decoded records back in write order.
func QueryRecords(ctx context.Context, ds lode.Dataset, f Filter) ([]map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	var out []map[string]any
	for _, snap := range snapshots {
		if !f.snapshotMatches(snap) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		var rows []map[string]any
		for _, item := range data {
			rec, ok := item.(map[string]any)
			if !ok || rec["record_kind"] != RecordKindRecord || !f.recordMatches(rec) {
				continue
			}
			rows = append(rows, rec)
		}
		// One snapshot spans several kind partitions; restore stream order.
		slices.SortStableFunc(rows, func(a, b map[string]any) int {
			return cmp.Compare(toInt64(a["offset"]), toInt64(b["offset"]))
		})
		for _, rec := range rows {
			out = append(out, rec)
			if f.Limit > 0 && len(out) >= f.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// QueryLatestMetrics finds the most recent session metrics record.
// Filters by sessionID and device if non-empty.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, sessionID, device string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Snapshots are ordered by creation time; walk latest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "kind", metricsPartition) ||
			!snapshotMatchesFilter(snap, "session_id", sessionID) ||
			!snapshotMatchesFilter(snap, "device", device) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			rec, ok := item.(map[string]any)
			if !ok || rec["record_kind"] != RecordKindMetrics {
				continue
			}
			if sessionID != "" && toString(rec["session_id"]) != sessionID {
				continue
			}
			if device != "" && toString(rec["device"]) != device {
				continue
			}
			return rec, nil
		}
	}
	return nil, ErrNoMetricsFound
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so session_id=s-1 does not match session_id=s-10.
func matchesPartitionValue(path, key, value string) bool {
	return slices.Contains(strings.Split(path, "/"), key+"="+value)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 reads a numeric field decoded from JSON or written in memory.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}
