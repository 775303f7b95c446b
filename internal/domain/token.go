package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const DefaultDurationMinutes = 90

type TokenID string

type State string

const (
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

func (s State) Valid() bool {
	switch s {
	case StateActive, StatePaused, StateCompleted:
		return true
	default:
		return false
	}
}

type EndReason string

const (
	EndReasonNone     EndReason = ""
	EndReasonEnded    EndReason = "ended"
	EndReasonTimedOut EndReason = "timed_out"
)

// Token is one bounded session. Hierarchy links are identifiers resolved
// through the session registry, never pointers.
type Token struct {
	ID              TokenID
	ParentID        TokenID
	ChildIDs        []TokenID
	Initiator       string
	Name            string
	Intent          string
	EnergyCost      int
	Boundaries      Boundaries
	DurationMinutes int
	StartTime       time.Time
	LastActivity    time.Time
	EndTime         *time.Time
	State           State
	EndReason       EndReason
}

func NewToken(name, initiator string, energyCost int) (Token, error) {
	t := Token{
		Name:            name,
		Initiator:       initiator,
		EnergyCost:      energyCost,
		ChildIDs:        []TokenID{},
		Boundaries:      Boundaries{},
		DurationMinutes: DefaultDurationMinutes,
	}
	if err := t.Validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}

func (t Token) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(t.Initiator) == "" {
		return fmt.Errorf("initiator is required")
	}
	if t.EnergyCost < 0 {
		return fmt.Errorf("energy cost must not be negative")
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if t.ParentID != "" && t.ParentID == t.ID {
		return fmt.Errorf("session %s cannot be its own parent: %w", t.ID, ErrCycle)
	}
	if t.State != "" && !t.State.Valid() {
		return fmt.Errorf("unknown state %q", t.State)
	}
	return nil
}

// Normalize replaces nil collections with empty ones and applies the default
// duration.
func (t *Token) Normalize() {
	if t.ChildIDs == nil {
		t.ChildIDs = []TokenID{}
	}
	if t.Boundaries == nil {
		t.Boundaries = Boundaries{}
	}
	if t.DurationMinutes == 0 {
		t.DurationMinutes = DefaultDurationMinutes
	}
}

// AddChild appends id unless already present. Linking the token to itself or
// to its own parent fails with ErrCycle; deeper ancestry is checked by the
// registry that owns the whole forest.
func (t *Token) AddChild(id TokenID) error {
	if id == t.ID || (t.ParentID != "" && id == t.ParentID) {
		return fmt.Errorf("add child %s to %s: %w", id, t.ID, ErrCycle)
	}
	if slices.Contains(t.ChildIDs, id) {
		return nil
	}
	t.ChildIDs = append(t.ChildIDs, id)
	return nil
}

func (t *Token) RemoveChild(id TokenID) error {
	idx := slices.Index(t.ChildIDs, id)
	if idx < 0 {
		return fmt.Errorf("child %s of %s: %w", id, t.ID, ErrNotFound)
	}
	t.ChildIDs = slices.Delete(t.ChildIDs, idx, idx+1)
	return nil
}

func (t Token) Clone() Token {
	out := t
	out.ChildIDs = slices.Clone(t.ChildIDs)
	if out.ChildIDs == nil {
		out.ChildIDs = []TokenID{}
	}
	out.Boundaries = t.Boundaries.Clone()
	if t.EndTime != nil {
		end := *t.EndTime
		out.EndTime = &end
	}
	return out
}

func (t Token) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

func (t Token) Elapsed(now time.Time) time.Duration {
	if t.StartTime.IsZero() {
		return 0
	}
	return now.Sub(t.StartTime)
}

// Expired reports whether the session ran past its duration cap.
func (t Token) Expired(now time.Time) bool {
	return t.Elapsed(now) > t.Duration()
}

func (t Token) Remaining(now time.Time) time.Duration {
	remaining := t.Duration() - t.Elapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t Token) IsRoot() bool {
	return t.ParentID == ""
}
