package state

import (
	"context"

	"github.com/kjannette/trahn-dca/internal/models"
)

// Store persists the holding value and DCA level for one pair.
// Save replaces both counters together.
type Store interface {
	Load(ctx context.Context) (models.Counters, error)
	Save(ctx context.Context, c models.Counters) error
}
