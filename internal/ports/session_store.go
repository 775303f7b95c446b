package ports

import (
	"context"

	"github.com/bnema/session-tokens/internal/domain"
)

// SessionStore persists one token per identifier. Save replaces the previous
// record atomically; Load returns domain.ErrNotFound for unknown ids.
type SessionStore interface {
	Save(ctx context.Context, token domain.Token) error
	Load(ctx context.Context, id domain.TokenID) (domain.Token, error)
	List(ctx context.Context) ([]domain.TokenID, error)
	Delete(ctx context.Context, id domain.TokenID) error
}
