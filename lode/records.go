package lode

import (
	"time"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/record"
)

// Record discriminator values.
const (
	RecordKindRecord  = "record"
	RecordKindMetrics = "metrics"
)

// metricsPartition is the kind partition holding session summaries.
const metricsPartition = "session_metrics"

// toRecordMap converts an envelope to a map for Lode storage. Lode
// HiveLayout requires records as map[string]any carrying the partition
// keys.
func toRecordMap(e record.Envelope, cfg Config) map[string]any {
	m := e.Map()
	m["record_kind"] = RecordKindRecord
	m["device"] = cfg.Device
	m["day"] = cfg.Day
	m["session_id"] = cfg.SessionID
	if cfg.Profile != "" {
		m["profile"] = cfg.Profile
	}
	return m
}

// toMetricsRecordMap converts a metrics snapshot to a storage record.
func toMetricsRecordMap(snap metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":  RecordKindMetrics,
		"kind":         metricsPartition,
		"device":       cfg.Device,
		"day":          cfg.Day,
		"session_id":   cfg.SessionID,
		"profile":      snap.Profile,
		"policy":       snap.Policy,
		"completed_at": completedAt.UTC().Format(time.RFC3339Nano),

		"sessions_started":   snap.SessionsStarted,
		"sessions_completed": snap.SessionsCompleted,
		"sessions_failed":    snap.SessionsFailed,
		"sessions_canceled":  snap.SessionsCanceled,

		"bytes_read":         snap.BytesRead,
		"bytes_skipped":      snap.BytesSkipped,
		"bytes_dropped":      snap.BytesDropped,
		"frames_accepted":    snap.FramesAccepted,
		"frames_rejected":    snap.FramesRejected,
		"rejected_by_reason": snap.RejectedByReason,
		"records_by_kind":    snap.RecordsByKind,
		"sequence_gaps":      snap.SequenceGaps,
		"clock_resets":       snap.ClockResets,
		"transport_errors":   snap.TransportErrors,

		"records_received":  snap.RecordsReceived,
		"records_persisted": snap.RecordsPersisted,
		"records_dropped":   snap.RecordsDropped,

		"lode_write_success": snap.LodeWriteSuccess,
		"lode_write_failure": snap.LodeWriteFailure,
		"forward_success":    snap.ForwardSuccess,
		"forward_failure":    snap.ForwardFailure,
	}
}
