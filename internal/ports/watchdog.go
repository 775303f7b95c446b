package ports

import (
	"context"

	"github.com/bnema/session-tokens/internal/domain"
)

type WatchdogMetrics interface {
	ComplianceChecked(result domain.ComplianceResult)
	ExpansionDecided(outcome domain.ExpansionOutcome)
	AlertRecorded(ok bool)
}

// LiveStateProbe reports the observed boundary state of a running session.
type LiveStateProbe interface {
	Observe(ctx context.Context, id domain.TokenID) (map[string]bool, error)
}

type NopWatchdogMetrics struct{}

func (NopWatchdogMetrics) ComplianceChecked(domain.ComplianceResult) {}

func (NopWatchdogMetrics) ExpansionDecided(domain.ExpansionOutcome) {}

func (NopWatchdogMetrics) AlertRecorded(bool) {}
