package repositories

import (
	"context"

	"github.com/moviememo/backend/internal/models"
)

// PlaylistRepository defines the data access contract for playlists and
// their movie associations.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByUser(ctx context.Context, userID string) ([]models.Playlist, error)
	ListAll(ctx context.Context) ([]models.Playlist, error)
	Update(ctx context.Context, playlist models.Playlist) error
	Delete(ctx context.Context, id string) error
	AddMovie(ctx context.Context, playlistID, movieID string) error
	RemoveMovie(ctx context.Context, playlistID, movieID string) error
}
