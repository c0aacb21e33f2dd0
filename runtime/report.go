package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/rawzeo/metrics"
	"github.com/justapithecus/rawzeo/types"
)

// SessionReport is the structured JSON report written by --report.
type SessionReport struct {
	SessionID  string              `json:"session_id"`
	Version    string              `json:"version"`
	Profile    string              `json:"profile"`
	Sources    []string            `json:"sources"`
	Outcome    types.OutcomeStatus `json:"outcome"`
	Message    string              `json:"message"`
	ExitCode   int                 `json:"exit_code"`
	DurationMs int64               `json:"duration_ms"`
	Records    int64               `json:"records"`
	Emitted    int64               `json:"emitted"`

	Rejections map[string]int64  `json:"rejections,omitempty"`
	Policies   []ReportPolicy    `json:"policies,omitempty"`
	Metrics    *metrics.Snapshot `json:"metrics"`
}

// ReportPolicy holds one policy's stats in the report.
type ReportPolicy struct {
	Name             string           `json:"name"`
	RecordsReceived  int64            `json:"records_received"`
	RecordsPersisted int64            `json:"records_persisted"`
	RecordsDropped   int64            `json:"records_dropped"`
	DroppedByKind    map[string]int64 `json:"dropped_by_kind,omitempty"`
	FlushCount       int64            `json:"flush_count"`
	Errors           int64            `json:"errors"`
}

// BuildSessionReport composes a SessionReport from a SessionResult and a
// metrics snapshot. policyNames label result.PolicyStats by index; missing
// names are left empty.
func BuildSessionReport(result *SessionResult, snap metrics.Snapshot, profile string, policyNames []string) *SessionReport {
	report := &SessionReport{
		SessionID:  result.SessionID,
		Version:    types.Version,
		Profile:    profile,
		Sources:    result.Sources,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   result.Outcome.ExitCode,
		DurationMs: result.Duration.Milliseconds(),
		Records:    result.Records,
		Emitted:    result.Emitted,
		Metrics:    &snap,
	}

	if len(result.Rejections) > 0 {
		report.Rejections = make(map[string]int64, len(result.Rejections))
		for reason, n := range result.Rejections {
			report.Rejections[reason.String()] = n
		}
	}

	for i, stats := range result.PolicyStats {
		rp := ReportPolicy{
			RecordsReceived:  stats.TotalRecords,
			RecordsPersisted: stats.RecordsPersisted,
			RecordsDropped:   stats.RecordsDropped,
			FlushCount:       stats.FlushCount,
			Errors:           stats.Errors,
		}
		if i < len(policyNames) {
			rp.Name = policyNames[i]
		}
		if len(stats.DroppedByKind) > 0 {
			rp.DroppedByKind = make(map[string]int64, len(stats.DroppedByKind))
			for kind, n := range stats.DroppedByKind {
				rp.DroppedByKind[string(kind)] = n
			}
		}
		report.Policies = append(report.Policies, rp)
	}

	return report
}

// WriteSessionReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeSessionReportTo writes report JSON to any writer.
func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *SessionReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
