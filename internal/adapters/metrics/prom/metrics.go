// Package prom exports watchdog activity as Prometheus counters.
package prom

import (
	"strconv"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "st"

type Metrics struct {
	checks     *prometheus.CounterVec
	expansions *prometheus.CounterVec
	alerts     *prometheus.CounterVec
}

var _ ports.WatchdogMetrics = (*Metrics)(nil)

// New registers the watchdog counters with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compliance_checks_total",
			Help:      "Compliance checks by outcome.",
		}, []string{"outcome"}),
		expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_requests_total",
			Help:      "Boundary change requests by decision.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_recorded_total",
			Help:      "Violation alerts by whether the ledger accepted them.",
		}, []string{"recorded"}),
	}

	for _, c := range []prometheus.Collector{m.checks, m.expansions, m.alerts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) ComplianceChecked(result domain.ComplianceResult) {
	m.checks.WithLabelValues(checkOutcome(result)).Inc()
}

func (m *Metrics) ExpansionDecided(outcome domain.ExpansionOutcome) {
	m.expansions.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) AlertRecorded(ok bool) {
	m.alerts.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func checkOutcome(result domain.ComplianceResult) string {
	switch {
	case result.TimedOut:
		return "timed_out"
	case result.Skipped:
		return "skipped"
	case result.Paused:
		return "paused"
	case result.Compliant:
		return "compliant"
	default:
		return "violation"
	}
}
