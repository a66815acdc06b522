package app

import (
	"github.com/moviememo/backend/internal/config"
	"github.com/moviememo/backend/internal/db"
	"github.com/moviememo/backend/internal/handlers"
	"github.com/moviememo/backend/internal/middleware"
	"github.com/moviememo/backend/internal/repositories"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool db.Pool, pictures handlers.PictureStorage, cfg config.Config) handlers.Dependencies {
	limiter := middleware.NewIPRateLimiter(
		cfg.WriteLimit.Requests,
		cfg.WriteLimit.Window,
		cfg.WriteLimit.Burst,
		cfg.WriteLimit.TTL,
	)

	return handlers.Dependencies{
		Users:          repositories.NewPostgresUserRepository(pool),
		Playlists:      repositories.NewPostgresPlaylistRepository(pool),
		Movies:         repositories.NewPostgresMovieRepository(pool),
		Pictures:       pictures,
		WriteLimiter:   limiter,
		UploadMaxBytes: cfg.UploadMaxBytes,
	}
}
