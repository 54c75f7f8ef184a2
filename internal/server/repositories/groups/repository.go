package groups

import (
	"context"

	"github.com/workdeck/workdeck/internal/server/models"
)

// Repository reads the authorization groups seeded by the migrations.
type Repository interface {
	GetByName(ctx context.Context, name string) (*models.Group, error)
	List(ctx context.Context) ([]*models.Group, error)
}
