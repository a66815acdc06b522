package handlers

import (
	"context"
	"io"
	"time"

	"github.com/moviememo/backend/internal/models"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUID(ctx context.Context, uid string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateUsername(ctx context.Context, id, username string, changedAt time.Time) error
	UpdateProfilePicture(ctx context.Context, id, picture string, updatedAt time.Time) error
}

// PlaylistStore captures persistence for playlist workflows.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByUser(ctx context.Context, userID string) ([]models.Playlist, error)
	ListAll(ctx context.Context) ([]models.Playlist, error)
	Update(ctx context.Context, playlist models.Playlist) error
	Delete(ctx context.Context, id string) error
	AddMovie(ctx context.Context, playlistID, movieID string) error
	RemoveMovie(ctx context.Context, playlistID, movieID string) error
}

// MovieStore captures the movie registry's get-or-create persistence.
type MovieStore interface {
	GetOrCreate(ctx context.Context, movie models.Movie) (models.Movie, error)
	FindByIMDBID(ctx context.Context, imdbID string) (models.Movie, error)
}

// PictureStorage persists normalized profile pictures.
type PictureStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}
