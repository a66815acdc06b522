package repositories

import (
	"context"
	"time"

	"github.com/moviememo/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByUID(ctx context.Context, uid string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateUsername(ctx context.Context, id, username string, changedAt time.Time) error
	UpdateProfilePicture(ctx context.Context, id, picture string, updatedAt time.Time) error
}
