package ports

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract verifies that a SessionStore implementation keeps the
// round-trip and lookup guarantees the session manager relies on.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	start := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		end := start.Add(45 * time.Minute)
		token := domain.Token{
			ID:              "contract-basic",
			ParentID:        "contract-parent",
			ChildIDs:        []domain.TokenID{"contract-c1", "contract-c2"},
			Initiator:       "shepherd",
			Name:            "dragon_slaying",
			Intent:          "finish the draft",
			EnergyCost:      5,
			Boundaries:      domain.Boundaries{"inbox_pause": true, "music": false},
			DurationMinutes: 60,
			StartTime:       start,
			LastActivity:    start.Add(10 * time.Minute),
			EndTime:         &end,
			State:           domain.StateCompleted,
			EndReason:       domain.EndReasonEnded,
		}

		require.NoError(t, store.Save(ctx, token))

		loaded, err := store.Load(ctx, token.ID)
		require.NoError(t, err)
		assert.Equal(t, token, loaded)
	})

	t.Run("empty boundaries and open end", func(t *testing.T) {
		token := domain.Token{
			ID:              "contract-empty",
			ChildIDs:        []domain.TokenID{},
			Initiator:       "shepherd",
			Name:            "idle",
			Boundaries:      domain.Boundaries{},
			DurationMinutes: domain.DefaultDurationMinutes,
			StartTime:       start,
			LastActivity:    start,
			State:           domain.StateActive,
		}

		require.NoError(t, store.Save(ctx, token))

		loaded, err := store.Load(ctx, token.ID)
		require.NoError(t, err)
		assert.Equal(t, token, loaded)
		assert.NotNil(t, loaded.Boundaries)
		assert.NotNil(t, loaded.ChildIDs)
		assert.Nil(t, loaded.EndTime)
	})

	t.Run("save replaces", func(t *testing.T) {
		token := domain.Token{
			ID:              "contract-replace",
			ChildIDs:        []domain.TokenID{},
			Initiator:       "shepherd",
			Name:            "focus",
			Boundaries:      domain.Boundaries{"inbox_pause": true},
			DurationMinutes: 30,
			StartTime:       start,
			LastActivity:    start,
			State:           domain.StateActive,
		}
		require.NoError(t, store.Save(ctx, token))

		token.State = domain.StatePaused
		token.Boundaries = domain.Boundaries{}
		require.NoError(t, store.Save(ctx, token))

		loaded, err := store.Load(ctx, token.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatePaused, loaded.State)
		assert.Equal(t, domain.Boundaries{}, loaded.Boundaries)
	})

	t.Run("load missing", func(t *testing.T) {
		_, err := store.Load(ctx, "contract-missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list and delete", func(t *testing.T) {
		for _, id := range []domain.TokenID{"contract-l1", "contract-l2"} {
			require.NoError(t, store.Save(ctx, domain.Token{
				ID:              id,
				ChildIDs:        []domain.TokenID{},
				Initiator:       "shepherd",
				Name:            "listed",
				Boundaries:      domain.Boundaries{},
				DurationMinutes: 1,
				StartTime:       start,
				LastActivity:    start,
				State:           domain.StateActive,
			}))
		}

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, domain.TokenID("contract-l1"))
		assert.Contains(t, ids, domain.TokenID("contract-l2"))

		require.NoError(t, store.Delete(ctx, "contract-l1"))
		_, err = store.Load(ctx, "contract-l1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "contract-l1"), domain.ErrNotFound)

		ids, err = store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, domain.TokenID("contract-l1"))
		assert.Contains(t, ids, domain.TokenID("contract-l2"))
	})
}
