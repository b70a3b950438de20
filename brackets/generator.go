package brackets

import (
	"context"

	"github.com/okhomin/bracket-engine/models"
)

type GenerateParams struct {
	Tournament *models.Tournament
	Entries    []models.Entry
}

// Generator materializes the complete bracket for a tournament in one pass.
// Implementations are pure: they never touch storage, the caller persists the
// returned matches.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*models.Match, error)

	Name() string
}
