package ports

import (
	"context"

	"github.com/bnema/session-tokens/internal/domain"
)

// Ledger is the append-only sink for compliance alerts.
type Ledger interface {
	Record(ctx context.Context, alert domain.Alert) error
	// List returns alerts in recording order; an empty id lists every alert.
	List(ctx context.Context, id domain.TokenID) ([]domain.Alert, error)
}
