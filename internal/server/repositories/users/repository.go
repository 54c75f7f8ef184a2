package users

import (
	"context"

	"github.com/workdeck/workdeck/internal/server/models"
)

// Repository is the identity store for user records. Lookups that match
// nothing return common.ErrUserDoesNotExist; inserts that break the email
// uniqueness constraint return common.ErrUserAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByDisplayName(ctx context.Context, name string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	AttachGroup(ctx context.Context, userID, groupID int64) error
	GroupsOf(ctx context.Context, userID int64) ([]*models.Group, error)
}
