package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/logging"
	"github.com/bnema/session-tokens/internal/ports"
	"github.com/google/uuid"
)

// BoundaryRevision computes the next boundaries for token. parent is nil
// unless the revision was requested with the parent locked. Returning nil
// boundaries leaves the token unchanged.
type BoundaryRevision func(token domain.Token, parent *domain.Token) (domain.Boundaries, error)

type record struct {
	id    domain.TokenID
	mu    sync.Mutex
	token domain.Token
}

func newRecord(token domain.Token) *record {
	return &record{id: token.ID, token: token}
}

// SessionManager owns the lifecycle state machine and the registry of every
// token it has seen. Each token has its own lock; the registry lock only
// guards the maps and is never held while waiting on a token lock.
type SessionManager struct {
	store  ports.SessionStore
	clock  ports.Clock
	logger *slog.Logger
	newID  func() domain.TokenID

	mu        sync.RWMutex
	records   map[domain.TokenID]*record
	live      map[domain.TokenID]struct{}
	completed []domain.TokenID
	parents   map[domain.TokenID]domain.TokenID
}

type ManagerOption func(*SessionManager)

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

func WithIDGenerator(fn func() domain.TokenID) ManagerOption {
	return func(m *SessionManager) {
		m.newID = fn
	}
}

func NewSessionManager(store ports.SessionStore, clock ports.Clock, opts ...ManagerOption) *SessionManager {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	m := &SessionManager{
		store:   store,
		clock:   clock,
		logger:  logging.NewNop(),
		newID:   func() domain.TokenID { return domain.TokenID(uuid.NewString()) },
		records: map[domain.TokenID]*record{},
		live:    map[domain.TokenID]struct{}{},
		parents: map[domain.TokenID]domain.TokenID{},
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// CreateSession registers token as a new active session. When the token names
// a parent, its id is appended to the parent's children. A store failure is
// returned alongside the registered token; the session stays registered.
func (m *SessionManager) CreateSession(ctx context.Context, token domain.Token) (domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}

	token = token.Clone()
	token.Normalize()
	if len(token.ChildIDs) > 0 {
		return domain.Token{}, fmt.Errorf("create session %q: children are linked after creation", token.Name)
	}
	if token.ID == "" {
		token.ID = m.newID()
	}
	if err := token.Validate(); err != nil {
		return domain.Token{}, fmt.Errorf("validate session: %w", err)
	}
	if _, err := m.lookup(token.ID); err == nil {
		return domain.Token{}, fmt.Errorf("create session %s: %w", token.ID, domain.ErrDuplicateID)
	}

	now := m.clock.Now()
	token.StartTime = now
	token.LastActivity = now
	token.EndTime = nil
	token.State = domain.StateActive
	token.EndReason = domain.EndReasonNone

	rec := newRecord(token)
	snapshot := token.Clone()

	if token.IsRoot() {
		if err := m.insert(rec); err != nil {
			return domain.Token{}, err
		}
		m.logger.Info("session created", "session_id", token.ID, "name", token.Name)
		return snapshot, m.persist(ctx, snapshot)
	}

	parent, err := m.lookup(token.ParentID)
	if err != nil {
		return domain.Token{}, fmt.Errorf("resolve parent of session %s: %w", token.ID, err)
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()

	if parent.token.State == domain.StateCompleted {
		return domain.Token{}, fmt.Errorf("attach session %s to completed parent %s: %w", token.ID, parent.token.ID, domain.ErrInvalidState)
	}

	linked := parent.token.Clone()
	if err := linked.AddChild(token.ID); err != nil {
		return domain.Token{}, err
	}
	if err := m.insert(rec); err != nil {
		return domain.Token{}, err
	}
	parent.token = linked

	m.logger.Info("session created", "session_id", token.ID, "parent_id", token.ParentID, "name", token.Name)

	return snapshot, errors.Join(m.persist(ctx, snapshot), m.persist(ctx, linked.Clone()))
}

func (m *SessionManager) PauseSession(ctx context.Context, id domain.TokenID) error {
	_, err := m.mutate(ctx, id, func(t *domain.Token, now time.Time) (bool, error) {
		if m.expireIfDue(t, now) {
			return true, fmt.Errorf("pause session %s: timed out: %w", id, domain.ErrInvalidState)
		}
		if t.State != domain.StateActive {
			return false, fmt.Errorf("pause session %s in state %s: %w", id, t.State, domain.ErrInvalidState)
		}
		t.State = domain.StatePaused
		return true, nil
	})
	return err
}

func (m *SessionManager) ResumeSession(ctx context.Context, id domain.TokenID) error {
	_, err := m.mutate(ctx, id, func(t *domain.Token, now time.Time) (bool, error) {
		if m.expireIfDue(t, now) {
			return true, fmt.Errorf("resume session %s: timed out: %w", id, domain.ErrInvalidState)
		}
		if t.State != domain.StatePaused {
			return false, fmt.Errorf("resume session %s in state %s: %w", id, t.State, domain.ErrInvalidState)
		}
		t.State = domain.StateActive
		t.LastActivity = now
		return true, nil
	})
	return err
}

func (m *SessionManager) EndSession(ctx context.Context, id domain.TokenID) error {
	_, err := m.mutate(ctx, id, func(t *domain.Token, now time.Time) (bool, error) {
		if t.State != domain.StateActive && t.State != domain.StatePaused {
			return false, fmt.Errorf("end session %s in state %s: %w", id, t.State, domain.ErrInvalidState)
		}
		complete(t, now, domain.EndReasonEnded)
		return true, nil
	})
	return err
}

// EnforceDuration completes the session with EndReasonTimedOut once it has
// run past its duration. It is the only writer of the timeout transition.
func (m *SessionManager) EnforceDuration(ctx context.Context, id domain.TokenID) (bool, error) {
	timedOut := false
	_, err := m.mutate(ctx, id, func(t *domain.Token, now time.Time) (bool, error) {
		timedOut = m.expireIfDue(t, now)
		return timedOut, nil
	})
	return timedOut, err
}

// Touch refreshes the last activity timestamp of a live session.
func (m *SessionManager) Touch(ctx context.Context, id domain.TokenID) error {
	_, err := m.mutate(ctx, id, func(t *domain.Token, now time.Time) (bool, error) {
		if t.State == domain.StateCompleted {
			return false, fmt.Errorf("touch session %s: %w", id, domain.ErrInvalidState)
		}
		t.LastActivity = now
		return true, nil
	})
	return err
}

// ReviseBoundaries is the single write path for boundaries. With withParent
// set, the token and its parent are locked in identifier order and the
// parent's snapshot is handed to revise.
func (m *SessionManager) ReviseBoundaries(ctx context.Context, id domain.TokenID, withParent bool, revise BoundaryRevision) (domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}

	rec, err := m.lookup(id)
	if err != nil {
		return domain.Token{}, err
	}

	if !withParent {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return m.revise(ctx, rec, nil, revise)
	}

	for {
		rec.mu.Lock()
		parentID := rec.token.ParentID
		rec.mu.Unlock()

		if parentID == "" {
			return domain.Token{}, fmt.Errorf("revise boundaries of %s: %w", id, domain.ErrNoParent)
		}

		parentRec, err := m.lookup(parentID)
		if err != nil {
			return domain.Token{}, fmt.Errorf("resolve parent of session %s: %w", id, err)
		}

		unlock := lockPair(rec, parentRec)
		if rec.token.ParentID != parentID {
			unlock()
			continue
		}

		parent := parentRec.token.Clone()
		token, err := m.revise(ctx, rec, &parent, revise)
		unlock()
		return token, err
	}
}

// AddChild links childID under parentID. Self links, links to an ancestor and
// re-parenting a child that already has a different parent fail with
// ErrCycle and leave both tokens untouched.
func (m *SessionManager) AddChild(ctx context.Context, parentID, childID domain.TokenID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if parentID == childID {
		return fmt.Errorf("add child %s to itself: %w", childID, domain.ErrCycle)
	}

	parentRec, err := m.lookup(parentID)
	if err != nil {
		return err
	}
	childRec, err := m.lookup(childID)
	if err != nil {
		return err
	}

	unlock := lockPair(parentRec, childRec)
	defer unlock()

	parent, child := &parentRec.token, &childRec.token
	if parent.State == domain.StateCompleted || child.State == domain.StateCompleted {
		return fmt.Errorf("link %s under %s: %w", childID, parentID, domain.ErrInvalidState)
	}
	if child.ParentID == parentID && slices.Contains(parent.ChildIDs, childID) {
		return nil
	}
	if child.ParentID != "" && child.ParentID != parentID {
		return fmt.Errorf("session %s already belongs to %s: %w", childID, child.ParentID, domain.ErrCycle)
	}
	linked := parent.Clone()
	if err := linked.AddChild(childID); err != nil {
		return err
	}

	// The ancestor walk and the new edge share one registry critical section,
	// so links under disjoint lock pairs cannot close a cycle together.
	m.mu.Lock()
	if m.isAncestorLocked(childID, parentID) {
		m.mu.Unlock()
		return fmt.Errorf("session %s is an ancestor of %s: %w", childID, parentID, domain.ErrCycle)
	}
	m.parents[childID] = parentID
	m.mu.Unlock()

	*parent = linked
	child.ParentID = parentID

	return errors.Join(m.persist(ctx, parent.Clone()), m.persist(ctx, child.Clone()))
}

// RemoveChild unlinks childID from parentID. The child does not have to be
// tracked by this manager.
func (m *SessionManager) RemoveChild(ctx context.Context, parentID, childID domain.TokenID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parentRec, err := m.lookup(parentID)
	if err != nil {
		return err
	}

	childRec, err := m.lookup(childID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		childRec = nil
	}

	var unlock func()
	if childRec == nil || childRec == parentRec {
		parentRec.mu.Lock()
		unlock = parentRec.mu.Unlock
	} else {
		unlock = lockPair(parentRec, childRec)
	}
	defer unlock()

	parent := &parentRec.token
	if parent.State == domain.StateCompleted {
		return fmt.Errorf("unlink %s from %s: %w", childID, parentID, domain.ErrInvalidState)
	}
	if err := parent.RemoveChild(childID); err != nil {
		return err
	}

	var errs []error
	errs = append(errs, m.persist(ctx, parent.Clone()))

	if childRec != nil && childRec != parentRec {
		child := &childRec.token
		if child.ParentID == parentID && child.State != domain.StateCompleted {
			child.ParentID = ""
			m.mu.Lock()
			delete(m.parents, childID)
			m.mu.Unlock()
			errs = append(errs, m.persist(ctx, child.Clone()))
		}
	}

	return errors.Join(errs...)
}

func (m *SessionManager) Get(ctx context.Context, id domain.TokenID) (domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}

	rec, err := m.lookup(id)
	if err != nil {
		return domain.Token{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.token.Clone(), nil
}

// List returns the tokens in state, ordered by start time. An empty state
// lists every tracked token.
func (m *SessionManager) List(_ context.Context, state domain.State) []domain.Token {
	m.mu.RLock()
	recs := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	tokens := make([]domain.Token, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if state == "" || rec.token.State == state {
			tokens = append(tokens, rec.token.Clone())
		}
		rec.mu.Unlock()
	}

	sortTokens(tokens)
	return tokens
}

// Live returns the active and paused tokens.
func (m *SessionManager) Live(_ context.Context) []domain.Token {
	m.mu.RLock()
	recs := make([]*record, 0, len(m.live))
	for id := range m.live {
		recs = append(recs, m.records[id])
	}
	m.mu.RUnlock()

	tokens := make([]domain.Token, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.token.State != domain.StateCompleted {
			tokens = append(tokens, rec.token.Clone())
		}
		rec.mu.Unlock()
	}

	sortTokens(tokens)
	return tokens
}

// Completed returns completed tokens in the order they completed.
func (m *SessionManager) Completed(_ context.Context) []domain.Token {
	m.mu.RLock()
	recs := make([]*record, 0, len(m.completed))
	for _, id := range m.completed {
		recs = append(recs, m.records[id])
	}
	m.mu.RUnlock()

	tokens := make([]domain.Token, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		tokens = append(tokens, rec.token.Clone())
		rec.mu.Unlock()
	}

	return tokens
}

// Restore loads every stored token that is not tracked yet and returns how
// many were added.
func (m *SessionManager) Restore(ctx context.Context) (int, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored sessions: %w: %w", domain.ErrStore, err)
	}

	loaded := make([]domain.Token, 0, len(ids))
	for _, id := range ids {
		token, err := m.store.Load(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("load session %s: %w: %w", id, domain.ErrStore, err)
		}
		token.Normalize()
		loaded = append(loaded, token)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return endedAt(loaded[i]).Before(endedAt(loaded[j]))
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, token := range loaded {
		if _, ok := m.records[token.ID]; ok {
			continue
		}
		m.records[token.ID] = newRecord(token)
		if token.State == domain.StateCompleted {
			m.completed = append(m.completed, token.ID)
		} else {
			m.live[token.ID] = struct{}{}
		}
		if token.ParentID != "" {
			m.parents[token.ID] = token.ParentID
		}
		added++
	}

	return added, nil
}

// DeleteSession removes a completed session from the store. Its in-memory
// history is kept and its id stays reserved.
func (m *SessionManager) DeleteSession(ctx context.Context, id domain.TokenID) error {
	rec, err := m.lookup(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.token.State != domain.StateCompleted {
		return fmt.Errorf("delete session %s in state %s: %w", id, rec.token.State, domain.ErrInvalidState)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w: %w", id, domain.ErrStore, err)
	}

	return nil
}

func (m *SessionManager) mutate(ctx context.Context, id domain.TokenID, fn func(t *domain.Token, now time.Time) (bool, error)) (domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}

	rec, err := m.lookup(id)
	if err != nil {
		return domain.Token{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	before := rec.token.State
	changed, fnErr := fn(&rec.token, m.clock.Now())
	if !changed {
		return rec.token.Clone(), fnErr
	}

	if before != domain.StateCompleted && rec.token.State == domain.StateCompleted {
		m.markCompleted(id)
		m.logger.Info("session completed", "session_id", id, "reason", rec.token.EndReason)
	} else if before != rec.token.State {
		m.logger.Info("session transitioned", "session_id", id, "from", before, "to", rec.token.State)
	}

	snapshot := rec.token.Clone()
	return snapshot, errors.Join(fnErr, m.persist(ctx, snapshot))
}

func (m *SessionManager) revise(ctx context.Context, rec *record, parent *domain.Token, revise BoundaryRevision) (domain.Token, error) {
	if rec.token.State == domain.StateCompleted {
		return rec.token.Clone(), fmt.Errorf("revise boundaries of %s: %w", rec.token.ID, domain.ErrInvalidState)
	}

	next, err := revise(rec.token.Clone(), parent)
	if err != nil {
		return rec.token.Clone(), err
	}
	if next == nil {
		return rec.token.Clone(), nil
	}

	rec.token.Boundaries = next.Clone()
	snapshot := rec.token.Clone()
	return snapshot, m.persist(ctx, snapshot)
}

func (m *SessionManager) expireIfDue(t *domain.Token, now time.Time) bool {
	if t.State == domain.StateCompleted || !t.Expired(now) {
		return false
	}
	complete(t, now, domain.EndReasonTimedOut)
	return true
}

func complete(t *domain.Token, now time.Time, reason domain.EndReason) {
	end := now
	t.EndTime = &end
	t.State = domain.StateCompleted
	t.EndReason = reason
}

func (m *SessionManager) insert(rec *record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := rec.id
	if _, ok := m.records[id]; ok {
		return fmt.Errorf("create session %s: %w", id, domain.ErrDuplicateID)
	}
	m.records[id] = rec
	m.live[id] = struct{}{}
	if rec.token.ParentID != "" {
		m.parents[id] = rec.token.ParentID
	}

	return nil
}

func (m *SessionManager) lookup(id domain.TokenID) (*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	return rec, nil
}

func (m *SessionManager) markCompleted(id domain.TokenID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.live, id)
	m.completed = append(m.completed, id)
}

// isAncestorLocked walks the parent index upward from of. m.mu must be held.
func (m *SessionManager) isAncestorLocked(candidate, of domain.TokenID) bool {
	seen := map[domain.TokenID]struct{}{}
	for cur := of; cur != ""; cur = m.parents[cur] {
		if cur == candidate {
			return true
		}
		if _, ok := seen[cur]; ok {
			return true
		}
		seen[cur] = struct{}{}
	}

	return false
}

func (m *SessionManager) persist(ctx context.Context, token domain.Token) error {
	if err := m.store.Save(ctx, token); err != nil {
		m.logger.Warn("save session failed", "session_id", token.ID, "state", token.State, "error", err)
		return fmt.Errorf("save session %s: %w: %w", token.ID, domain.ErrStore, err)
	}
	return nil
}

// lockPair locks two records in identifier order and returns the unlock func.
func lockPair(a, b *record) func() {
	first, second := a, b
	if b.id < a.id {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()

	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

func sortTokens(tokens []domain.Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		if !tokens[i].StartTime.Equal(tokens[j].StartTime) {
			return tokens[i].StartTime.Before(tokens[j].StartTime)
		}
		return tokens[i].ID < tokens[j].ID
	})
}

func endedAt(token domain.Token) time.Time {
	if token.EndTime == nil {
		return time.Time{}
	}
	return *token.EndTime
}
