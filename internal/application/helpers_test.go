package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testStart}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type inMemorySessionStore struct {
	mu      sync.Mutex
	tokens  map[domain.TokenID]domain.Token
	saves   int
	saveErr error
}

func newInMemorySessionStore() *inMemorySessionStore {
	return &inMemorySessionStore{tokens: map[domain.TokenID]domain.Token{}}
}

func (s *inMemorySessionStore) Save(_ context.Context, token domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tokens[token.ID] = token.Clone()
	return nil
}

func (s *inMemorySessionStore) Load(_ context.Context, id domain.TokenID) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return domain.Token{}, fmt.Errorf("load %s: %w", id, domain.ErrNotFound)
	}
	return token.Clone(), nil
}

func (s *inMemorySessionStore) List(_ context.Context) ([]domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]domain.TokenID, 0, len(s.tokens))
	for id := range s.tokens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *inMemorySessionStore) Delete(_ context.Context, id domain.TokenID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, domain.ErrNotFound)
	}
	delete(s.tokens, id)
	return nil
}

func (s *inMemorySessionStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *inMemorySessionStore) stored(t *testing.T, id domain.TokenID) domain.Token {
	t.Helper()
	token, err := s.Load(context.Background(), id)
	require.NoError(t, err)
	return token
}

var errDiskFull = errors.New("disk full")

func sequentialIDs() func() domain.TokenID {
	var n atomic.Int64
	return func() domain.TokenID {
		return domain.TokenID(fmt.Sprintf("s%d", n.Add(1)))
	}
}

func newTestManager(t *testing.T) (*SessionManager, *inMemorySessionStore, *fakeClock) {
	t.Helper()
	store := newInMemorySessionStore()
	clock := newFakeClock()
	return NewSessionManager(store, clock, WithIDGenerator(sequentialIDs())), store, clock
}

func createSession(t *testing.T, m *SessionManager, name string, parent domain.TokenID, boundaries domain.Boundaries) domain.Token {
	t.Helper()
	token, err := domain.NewToken(name, "shepherd", 1)
	require.NoError(t, err)
	token.ParentID = parent
	token.Boundaries = boundaries
	created, err := m.CreateSession(context.Background(), token)
	require.NoError(t, err)
	return created
}

func mockAnyContext() interface{} {
	return mock.Anything
}
