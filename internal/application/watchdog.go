package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/logging"
	"github.com/bnema/session-tokens/internal/ports"
	"golang.org/x/sync/errgroup"
)

const defaultSweepConcurrency = 8

// Sessions is the part of the session manager the watchdog drives.
type Sessions interface {
	Get(ctx context.Context, id domain.TokenID) (domain.Token, error)
	Live(ctx context.Context) []domain.Token
	Touch(ctx context.Context, id domain.TokenID) error
	PauseSession(ctx context.Context, id domain.TokenID) error
	EnforceDuration(ctx context.Context, id domain.TokenID) (bool, error)
	ReviseBoundaries(ctx context.Context, id domain.TokenID, withParent bool, revise BoundaryRevision) (domain.Token, error)
}

var _ Sessions = (*SessionManager)(nil)

// Watchdog validates live state against declared boundaries and mediates
// boundary changes between a child session and its parent.
type Watchdog struct {
	sessions    Sessions
	ledger      ports.Ledger
	clock       ports.Clock
	metrics     ports.WatchdogMetrics
	logger      *slog.Logger
	concurrency int
}

type WatchdogOption func(*Watchdog)

func WithWatchdogLogger(logger *slog.Logger) WatchdogOption {
	return func(w *Watchdog) {
		w.logger = logger
	}
}

func WithMetrics(metrics ports.WatchdogMetrics) WatchdogOption {
	return func(w *Watchdog) {
		w.metrics = metrics
	}
}

// WithSweepConcurrency bounds how many sessions a sweep checks at once.
func WithSweepConcurrency(n int) WatchdogOption {
	return func(w *Watchdog) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func NewWatchdog(sessions Sessions, ledger ports.Ledger, clock ports.Clock, opts ...WatchdogOption) *Watchdog {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	w := &Watchdog{
		sessions:    sessions,
		ledger:      ledger,
		clock:       clock,
		metrics:     ports.NopWatchdogMetrics{},
		logger:      logging.NewNop(),
		concurrency: defaultSweepConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// CheckCompliance enforces the duration cap, then compares live against the
// session's boundaries. A violation pauses the session and records an alert;
// a session that is no longer active yields a skipped result. When the store
// fails to persist a transition, the result still describes the transition
// and the store error is returned with it.
func (w *Watchdog) CheckCompliance(ctx context.Context, id domain.TokenID, live map[string]bool) (domain.ComplianceResult, error) {
	result, err := w.checkCompliance(ctx, id, live)
	if err != nil && !errors.Is(err, domain.ErrStore) {
		return result, err
	}

	w.metrics.ComplianceChecked(result)
	return result, err
}

func (w *Watchdog) checkCompliance(ctx context.Context, id domain.TokenID, live map[string]bool) (domain.ComplianceResult, error) {
	result := domain.ComplianceResult{TokenID: id}

	var storeErrs []error
	// storeOnly reports whether err is nil or only a failure to persist.
	storeOnly := func(err error) bool {
		if err == nil {
			return true
		}
		if !errors.Is(err, domain.ErrStore) {
			return false
		}
		storeErrs = append(storeErrs, err)
		return !errors.Is(err, domain.ErrInvalidState)
	}

	timedOut, err := w.sessions.EnforceDuration(ctx, id)
	if !storeOnly(err) {
		return result, fmt.Errorf("enforce duration: %w", err)
	}
	if timedOut {
		result.TimedOut = true
		result.State = domain.StateCompleted
		result.Skipped = true
		return result, errors.Join(storeErrs...)
	}

	token, err := w.sessions.Get(ctx, id)
	if err != nil {
		return result, err
	}
	result.State = token.State
	if token.State != domain.StateActive {
		result.Skipped = true
		return result, nil
	}

	if err := w.sessions.Touch(ctx, id); !storeOnly(err) {
		if errors.Is(err, domain.ErrInvalidState) {
			return w.observed(ctx, result, storeErrs)
		}
		return result, err
	}

	result.Violations = domain.Violations(token.Boundaries, live)
	result.Compliant = len(result.Violations) == 0
	if result.Compliant {
		return result, errors.Join(storeErrs...)
	}

	if err := w.sessions.PauseSession(ctx, id); !storeOnly(err) {
		if errors.Is(err, domain.ErrInvalidState) {
			return w.observed(ctx, result, storeErrs)
		}
		return result, fmt.Errorf("pause violating session %s: %w", id, err)
	}
	result.Paused = true
	result.State = domain.StatePaused

	w.logger.Warn("boundary violation", "session_id", id, "violated", strings.Join(result.Violations, ","))
	w.bark(ctx, domain.Alert{TokenID: id, Violated: result.Violations, At: w.clock.Now()})

	return result, errors.Join(storeErrs...)
}

// observed reports the state another writer moved the session to.
func (w *Watchdog) observed(ctx context.Context, result domain.ComplianceResult, storeErrs []error) (domain.ComplianceResult, error) {
	token, err := w.sessions.Get(ctx, result.TokenID)
	if err != nil {
		return result, err
	}
	result.State = token.State
	result.Skipped = true
	result.Compliant = false
	result.Violations = nil
	return result, errors.Join(storeErrs...)
}

// bark records the alert. Ledger failures are logged only.
func (w *Watchdog) bark(ctx context.Context, alert domain.Alert) {
	if w.ledger == nil {
		w.metrics.AlertRecorded(false)
		return
	}
	if err := w.ledger.Record(ctx, alert); err != nil {
		w.logger.Error("record alert failed", "session_id", alert.TokenID, "error", err)
		w.metrics.AlertRecorded(false)
		return
	}
	w.metrics.AlertRecorded(true)
}

// CheckDuration reports whether the session is still within its duration
// cap. It never changes session state.
func (w *Watchdog) CheckDuration(token domain.Token) bool {
	return token.Elapsed(w.clock.Now()) <= token.Duration()
}

// VerifyExpansion fails when proposed would loosen token's boundaries.
func (w *Watchdog) VerifyExpansion(token domain.Token, proposed domain.Boundaries) error {
	if domain.IsExpansion(proposed, token.Boundaries) {
		return fmt.Errorf("session %s drops %s: %w", token.ID, strings.Join(domain.Dropped(proposed, token.Boundaries), ","), domain.ErrBoundaryViolation)
	}
	return nil
}

// RequestExpansion replaces a child session's boundaries with proposed.
// Narrowing applies at once. An expansion is granted only while proposed still
// holds every restriction of the parent; otherwise it is denied and the
// session is left as it was.
func (w *Watchdog) RequestExpansion(ctx context.Context, id domain.TokenID, proposed domain.Boundaries) (domain.ExpansionResult, error) {
	proposed = proposed.Clone()
	result := domain.ExpansionResult{TokenID: id, Proposed: proposed}

	child, err := w.sessions.Get(ctx, id)
	if err != nil {
		return result, err
	}
	if child.IsRoot() {
		return result, fmt.Errorf("request expansion for %s: %w", id, domain.ErrNoParent)
	}
	if child.State == domain.StateCompleted {
		return result, fmt.Errorf("request expansion for %s: %w", id, domain.ErrInvalidState)
	}

	if !domain.IsExpansion(proposed, child.Boundaries) {
		updated, err := w.sessions.ReviseBoundaries(ctx, id, false, func(current domain.Token, _ *domain.Token) (domain.Boundaries, error) {
			if err := w.VerifyExpansion(current, proposed); err != nil {
				return nil, err
			}
			return proposed, nil
		})
		if err != nil && !errors.Is(err, domain.ErrStore) {
			return result, err
		}

		result.Outcome = domain.ExpansionAppliedDirectly
		result.Applied = updated.Boundaries
		w.decided(result)
		return result, err
	}

	updated, err := w.sessions.ReviseBoundaries(ctx, id, true, func(_ domain.Token, parent *domain.Token) (domain.Boundaries, error) {
		if parent == nil {
			return nil, fmt.Errorf("request expansion for %s: %w", id, domain.ErrNoParent)
		}
		if domain.IsExpansion(proposed, parent.Boundaries) {
			dropped := domain.Dropped(proposed, parent.Boundaries)
			result.Outcome = domain.ExpansionDenied
			result.Reason = fmt.Sprintf("parent %s requires %s", parent.ID, strings.Join(dropped, ","))
			return nil, nil
		}
		result.Outcome = domain.ExpansionGranted
		return proposed, nil
	})
	if err != nil && !errors.Is(err, domain.ErrStore) {
		return domain.ExpansionResult{TokenID: id, Proposed: proposed}, err
	}

	result.Applied = updated.Boundaries
	w.decided(result)
	return result, err
}

func (w *Watchdog) decided(result domain.ExpansionResult) {
	w.metrics.ExpansionDecided(result.Outcome)
	w.logger.Info("boundary request decided", "session_id", result.TokenID, "outcome", result.Outcome, "reason", result.Reason)
}

// Sweep checks every live session. Without a probe only the duration cap is
// enforced and the results are marked skipped. Per-session failures are
// joined into the returned error and do not stop the sweep; a session whose
// transition only failed to persist keeps its result.
func (w *Watchdog) Sweep(ctx context.Context, probe ports.LiveStateProbe) ([]domain.ComplianceResult, error) {
	tokens := w.sessions.Live(ctx)

	var (
		mu      sync.Mutex
		results = make([]domain.ComplianceResult, 0, len(tokens))
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, token := range tokens {
		id := token.ID
		g.Go(func() error {
			result, err := w.sweepOne(gctx, id, probe)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("sweep session %s: %w", id, err))
				if !errors.Is(err, domain.ErrStore) {
					return nil
				}
			}
			results = append(results, result)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func (w *Watchdog) sweepOne(ctx context.Context, id domain.TokenID, probe ports.LiveStateProbe) (domain.ComplianceResult, error) {
	if probe == nil {
		timedOut, err := w.sessions.EnforceDuration(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrStore) {
			return domain.ComplianceResult{}, err
		}
		token, getErr := w.sessions.Get(ctx, id)
		if getErr != nil {
			return domain.ComplianceResult{}, getErr
		}
		return domain.ComplianceResult{TokenID: id, State: token.State, TimedOut: timedOut, Skipped: true}, err
	}

	live, err := probe.Observe(ctx, id)
	if err != nil {
		return domain.ComplianceResult{}, fmt.Errorf("observe live state: %w", err)
	}

	return w.CheckCompliance(ctx, id, live)
}

// Run sweeps on every tick until ctx is done.
func (w *Watchdog) Run(ctx context.Context, interval time.Duration, probe ports.LiveStateProbe) error {
	if interval <= 0 {
		return fmt.Errorf("watchdog interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			results, err := w.Sweep(ctx, probe)
			if err != nil {
				w.logger.Warn("sweep finished with errors", "error", err)
			}
			w.logger.Debug("sweep finished", "checked", len(results))
		}
	}
}
