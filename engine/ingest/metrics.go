package ingest

import (
	"time"

	"github.com/WessleyAI/vidrag/pkg/metrics"
)

// Metrics publishes pipeline counters into a registry. A nil *Metrics is a
// no-op.
type Metrics struct {
	reg *metrics.Registry
}

// NewMetrics registers the ingest families on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	m := &Metrics{reg: reg}
	m.items("ok")
	m.items("failed")
	m.items("skipped")
	reg.Counter("vidrag_records_total", "Records produced.")
	reg.Counter("vidrag_dlq_total", "Jobs published to the dead letter queue.")
	return m
}

func (m *Metrics) items(result string) *metrics.Counter {
	return m.reg.Counter("vidrag_items_total", "Videos processed by result.", "result", result)
}

func (m *Metrics) itemDone(result string, records int) {
	if m == nil {
		return
	}
	m.items(result).Inc()
	if records > 0 {
		m.reg.Counter("vidrag_records_total", "Records produced.").Add(int64(records))
	}
}

func (m *Metrics) dlq() {
	if m == nil {
		return
	}
	m.reg.Counter("vidrag_dlq_total", "Jobs published to the dead letter queue.").Inc()
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.reg.Histogram("vidrag_stage_seconds", "Pipeline stage duration.", nil, "stage", stage).Since(start)
}
