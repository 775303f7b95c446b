package domain

import "time"

// Alert is the ledger record of a compliance violation.
type Alert struct {
	TokenID  TokenID
	Violated []string
	At       time.Time
}

type ComplianceResult struct {
	TokenID    TokenID
	State      State
	Compliant  bool
	Violations []string
	// Paused is set when this check moved the session to paused.
	Paused bool
	// TimedOut is set when the duration check completed the session.
	TimedOut bool
	// Skipped is set when the session was not active and nothing was checked.
	Skipped bool
}

type ExpansionOutcome string

const (
	ExpansionAppliedDirectly ExpansionOutcome = "applied_directly"
	ExpansionGranted         ExpansionOutcome = "granted"
	ExpansionDenied          ExpansionOutcome = "denied"
)

type ExpansionResult struct {
	TokenID  TokenID
	Outcome  ExpansionOutcome
	Proposed Boundaries
	// Applied holds the boundaries in force after the request.
	Applied Boundaries
	Reason  string
}

func (r ExpansionResult) Accepted() bool {
	return r.Outcome == ExpansionAppliedDirectly || r.Outcome == ExpansionGranted
}
