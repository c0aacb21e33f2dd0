package metrics

import (
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// promCollector exposes a Collector's snapshot as Prometheus metrics. Values
// are read at scrape time.
type promCollector struct {
	source *Collector

	sessions       *prometheus.Desc
	bytes          *prometheus.Desc
	framesAccepted *prometheus.Desc
	framesRejected *prometheus.Desc
	records        *prometheus.Desc
	sequenceGaps   *prometheus.Desc
	clockResets    *prometheus.Desc
	transportErrs  *prometheus.Desc
	ingested       *prometheus.Desc
	lodeWrites     *prometheus.Desc
	forwards       *prometheus.Desc
}

// NewPrometheusCollector returns a prometheus.Collector backed by c. The
// session dimensions become constant labels.
func NewPrometheusCollector(c *Collector) prometheus.Collector {
	s := c.Snapshot()
	labels := prometheus.Labels{"profile": s.Profile, "policy": s.Policy, "storage_backend": s.StorageBackend}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc("rawzeo_"+name, help, variable, labels)
	}
	return &promCollector{
		source:         c,
		sessions:       desc("sessions_total", "Decode sessions by outcome", "outcome"),
		bytes:          desc("bytes_total", "Stream bytes by disposition", "disposition"),
		framesAccepted: desc("frames_accepted_total", "Frames that passed validation and decoded"),
		framesRejected: desc("rejections_total", "Rejection notices by reason", "reason"),
		records:        desc("records_total", "Decoded records by kind", "kind"),
		sequenceGaps:   desc("sequence_gaps_total", "Frames missing from the sequence numbering"),
		clockResets:    desc("clock_resets_total", "Timestamps that did not continue the running clock"),
		transportErrs:  desc("transport_errors_total", "Transport read failures"),
		ingested:       desc("policy_records_total", "Records handled by ingestion policies by result", "result"),
		lodeWrites:     desc("lode_writes_total", "Lode write calls by result", "result"),
		forwards:       desc("forward_publishes_total", "Adapter publish calls by result", "result"),
	}
}

// Register registers a Prometheus view of c with reg.
func Register(reg prometheus.Registerer, c *Collector) error {
	return reg.Register(NewPrometheusCollector(c))
}

func (p *promCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.sessions
	ch <- p.bytes
	ch <- p.framesAccepted
	ch <- p.framesRejected
	ch <- p.records
	ch <- p.sequenceGaps
	ch <- p.clockResets
	ch <- p.transportErrs
	ch <- p.ingested
	ch <- p.lodeWrites
	ch <- p.forwards
}

func (p *promCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.source.Snapshot()
	counter := func(d *prometheus.Desc, v int64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), lv...)
	}

	counter(p.sessions, s.SessionsStarted, "started")
	counter(p.sessions, s.SessionsCompleted, "completed")
	counter(p.sessions, s.SessionsFailed, "failed")
	counter(p.sessions, s.SessionsCanceled, "canceled")

	counter(p.bytes, s.BytesRead, "read")
	counter(p.bytes, s.BytesSkipped, "skipped")
	counter(p.bytes, s.BytesDropped, "dropped")

	counter(p.framesAccepted, s.FramesAccepted)
	for _, reason := range slices.Sorted(maps.Keys(s.RejectedByReason)) {
		counter(p.framesRejected, s.RejectedByReason[reason], reason)
	}
	for _, kind := range slices.Sorted(maps.Keys(s.RecordsByKind)) {
		counter(p.records, s.RecordsByKind[kind], kind)
	}
	counter(p.sequenceGaps, s.SequenceGaps)
	counter(p.clockResets, s.ClockResets)
	counter(p.transportErrs, s.TransportErrors)

	counter(p.ingested, s.RecordsReceived, "received")
	counter(p.ingested, s.RecordsPersisted, "persisted")
	counter(p.ingested, s.RecordsDropped, "dropped")

	counter(p.lodeWrites, s.LodeWriteSuccess, "success")
	counter(p.lodeWrites, s.LodeWriteFailure, "failure")
	counter(p.forwards, s.ForwardSuccess, "success")
	counter(p.forwards, s.ForwardFailure, "failure")
}
