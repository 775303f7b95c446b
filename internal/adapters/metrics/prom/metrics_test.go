package prom

import (
	"testing"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ComplianceChecked(domain.ComplianceResult{Compliant: true})
	m.ComplianceChecked(domain.ComplianceResult{Compliant: true})
	m.ComplianceChecked(domain.ComplianceResult{Paused: true})
	m.ComplianceChecked(domain.ComplianceResult{TimedOut: true, Skipped: true})
	m.ComplianceChecked(domain.ComplianceResult{Skipped: true})
	m.ExpansionDecided(domain.ExpansionDenied)
	m.ExpansionDecided(domain.ExpansionGranted)
	m.ExpansionDecided(domain.ExpansionDenied)
	m.AlertRecorded(true)
	m.AlertRecorded(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checks.WithLabelValues("compliant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("paused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("timed_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.expansions.WithLabelValues(string(domain.ExpansionDenied))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.expansions.WithLabelValues(string(domain.ExpansionGranted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("false")))

	assert.Equal(t, 2, testutil.CollectAndCount(m.expansions))
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
