package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	backend "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "st:session:"

// Store keeps each session as a JSON value and indexes ids in a sorted set
// scored by start time.
type Store struct {
	client *backend.Client
	prefix string
}

var _ ports.SessionStore = (*Store)(nil)

type Option func(*Store)

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}

	return store
}

type record struct {
	ID              string          `json:"id"`
	ParentID        string          `json:"parent_id,omitempty"`
	ChildIDs        []string        `json:"child_ids"`
	Initiator       string          `json:"initiator"`
	Name            string          `json:"name"`
	Intent          string          `json:"intent,omitempty"`
	EnergyCost      int             `json:"energy_cost"`
	Boundaries      map[string]bool `json:"boundaries"`
	DurationMinutes int             `json:"duration_minutes"`
	StartTime       time.Time       `json:"start_time"`
	LastActivity    time.Time       `json:"last_activity"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	State           string          `json:"state"`
	EndReason       string          `json:"end_reason,omitempty"`
}

func (s *Store) key(id domain.TokenID) string {
	return s.prefix + string(id)
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) Save(ctx context.Context, token domain.Token) error {
	if token.ID == "" {
		return errors.New("save session: empty id")
	}

	data, err := json.Marshal(toRecord(token))
	if err != nil {
		return fmt.Errorf("encode session %s: %w", token.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(token.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(token.StartTime.Unix()),
		Member: string(token.ID),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s to redis: %w", token.ID, err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context, id domain.TokenID) (domain.Token, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Token{}, fmt.Errorf("load session %s: %w", id, domain.ErrNotFound)
		}
		return domain.Token{}, fmt.Errorf("load session %s from redis: %w", id, err)
	}

	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return domain.Token{}, fmt.Errorf("decode session %s: %w", id, err)
	}

	token, err := fromRecord(rec)
	if err != nil {
		return domain.Token{}, fmt.Errorf("decode session %s: %w", id, err)
	}

	return token, nil
}

// List returns ids ordered by start time.
func (s *Store) List(ctx context.Context) ([]domain.TokenID, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	ids := make([]domain.TokenID, 0, len(members))
	for _, member := range members {
		ids = append(ids, domain.TokenID(member))
	}

	return ids, nil
}

func (s *Store) Delete(ctx context.Context, id domain.TokenID) error {
	pipe := s.client.TxPipeline()
	deleted := pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), string(id))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session %s from redis: %w", id, err)
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("delete session %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toRecord(token domain.Token) record {
	childIDs := make([]string, 0, len(token.ChildIDs))
	for _, id := range token.ChildIDs {
		childIDs = append(childIDs, string(id))
	}

	return record{
		ID:              string(token.ID),
		ParentID:        string(token.ParentID),
		ChildIDs:        childIDs,
		Initiator:       token.Initiator,
		Name:            token.Name,
		Intent:          token.Intent,
		EnergyCost:      token.EnergyCost,
		Boundaries:      token.Boundaries.Clone(),
		DurationMinutes: token.DurationMinutes,
		StartTime:       token.StartTime.UTC(),
		LastActivity:    token.LastActivity.UTC(),
		EndTime:         utcPtr(token.EndTime),
		State:           string(token.State),
		EndReason:       string(token.EndReason),
	}
}

func fromRecord(rec record) (domain.Token, error) {
	state := domain.State(rec.State)
	if state == "" {
		state = domain.StateActive
	}
	if !state.Valid() {
		return domain.Token{}, fmt.Errorf("unknown state %q", rec.State)
	}

	childIDs := make([]domain.TokenID, 0, len(rec.ChildIDs))
	for _, id := range rec.ChildIDs {
		childIDs = append(childIDs, domain.TokenID(id))
	}

	token := domain.Token{
		ID:              domain.TokenID(rec.ID),
		ParentID:        domain.TokenID(rec.ParentID),
		ChildIDs:        childIDs,
		Initiator:       rec.Initiator,
		Name:            rec.Name,
		Intent:          rec.Intent,
		EnergyCost:      rec.EnergyCost,
		Boundaries:      domain.Boundaries(rec.Boundaries).Clone(),
		DurationMinutes: rec.DurationMinutes,
		StartTime:       rec.StartTime.UTC(),
		LastActivity:    rec.LastActivity.UTC(),
		EndTime:         utcPtr(rec.EndTime),
		State:           state,
		EndReason:       domain.EndReason(rec.EndReason),
	}
	token.Normalize()

	return token, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
