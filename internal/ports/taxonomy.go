package ports

import (
	"context"

	"github.com/bnema/session-tokens/internal/domain"
)

type TaxonomySource interface {
	Categories(ctx context.Context) ([]domain.TaxonomyCategory, error)
	Category(ctx context.Context, name string) (domain.TaxonomyCategory, error)
}
