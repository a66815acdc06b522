package repositories

import (
	"context"

	"github.com/moviememo/backend/internal/models"
)

// MovieRepository defines the data access contract for the movie registry.
type MovieRepository interface {
	GetOrCreate(ctx context.Context, movie models.Movie) (models.Movie, error)
	FindByIMDBID(ctx context.Context, imdbID string) (models.Movie, error)
}
