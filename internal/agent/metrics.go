package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the driver's in-process counters and gauges. Instrumentation
// only: no exporter or pipeline wiring.
type Metrics struct {
	TurnsTotal       *prometheus.CounterVec
	ToolCallsTotal   *prometheus.CounterVec
	CompactionsTotal prometheus.Counter
	ActiveSubagents  prometheus.Gauge
	CronFiresTotal   *prometheus.CounterVec
}

// NewMetrics registers and returns a fresh Metrics set against the default
// Prometheus registry. Call once at process startup.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_turns_total",
				Help: "Total number of driver turns by terminal outcome",
			},
			[]string{"outcome"},
		),
		ToolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_calls_total",
				Help: "Total number of tool calls executed by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		CompactionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentcore_compactions_total",
				Help: "Total number of context compression passes triggered",
			},
		),
		ActiveSubagents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_active_subagents",
				Help: "Current number of running background subagents",
			},
		),
		CronFiresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_cron_fires_total",
				Help: "Total number of cron job fires by status",
			},
			[]string{"status"},
		),
	}
}
