package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/moviememo/backend/internal/logging"
	"github.com/moviememo/backend/internal/models"
	"github.com/moviememo/backend/internal/repositories"
)

// PlaylistHandler implements the playlist store endpoints.
type PlaylistHandler struct {
	Users     UserStore
	Playlists PlaylistStore
	Movies    MovieStore
	NowFunc   func() time.Time
}

// Create handles POST /api/playlists/create/{user_uid}/ requests.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := h.Users.FindByUID(ctx, r.PathValue("user_uid"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error("failed to look up playlist owner", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid create playlist payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	var rawName string
	if req.Name != nil {
		rawName = *req.Name
	}
	name, errs := validatePlaylistName(rawName)
	if len(errs) > 0 {
		respondValidation(ctx, w, "Failed to create playlist", errs)
		return
	}

	playlist := models.Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: h.now(),
		UserID:    user.ID,
		User:      user,
	}
	if req.Description != nil {
		playlist.Description = *req.Description
	}

	if err := h.Playlists.Create(ctx, playlist); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error("failed to create playlist", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create playlist")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message":  "Playlist created successfully",
		"playlist": newPlaylistPayload(playlist),
	})
}

// ListByUser handles GET /api/playlists/user/{user_uid}/ requests.
func (h PlaylistHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := h.Users.FindByUID(ctx, r.PathValue("user_uid"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error("failed to look up playlist owner", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	playlists, err := h.Playlists.ListByUser(ctx, user.ID)
	if err != nil {
		logger.Error("failed to list playlists", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to list playlists")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"playlists": newPlaylistPayloads(playlists),
		"count":     len(playlists),
	})
}

// ListAll handles GET /api/playlists/all/ requests.
func (h PlaylistHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlists, err := h.Playlists.ListAll(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list playlists", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to list playlists")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"playlists": newPlaylistPayloads(playlists),
		"count":     len(playlists),
	})
}

// Get handles GET /api/playlists/{id}/ requests.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, ok := h.fetchPlaylist(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"playlist": newPlaylistPayload(playlist)})
}

// Update handles PUT /api/playlists/{id}/update/ requests. The body is
// partial; absent fields keep their stored values.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlist, ok := h.fetchPlaylist(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid update playlist payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		name, errs := validatePlaylistName(*req.Name)
		if len(errs) > 0 {
			respondValidation(ctx, w, "Failed to update playlist", errs)
			return
		}
		playlist.Name = name
	}
	if req.Description != nil {
		playlist.Description = *req.Description
	}

	if err := h.Playlists.Update(ctx, playlist); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Playlist not found")
			return
		}
		logger.Error("failed to update playlist", "error", err, "playlistId", playlist.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to update playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message":  "Playlist updated successfully",
		"playlist": newPlaylistPayload(playlist),
	})
}

// Delete handles DELETE /api/playlists/{id}/delete/ requests. Association
// rows go with the playlist; movie registry rows stay.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlist, ok := h.fetchPlaylist(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Playlist not found")
			return
		}
		logger.Error("failed to delete playlist", "error", err, "playlistId", playlist.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}

	respondMessage(ctx, w, http.StatusOK, fmt.Sprintf("Playlist \"%s\" deleted successfully", playlist.Name))
}

// AddMovie handles POST /api/playlists/{id}/add-movie/ requests. The movie
// registry row is created on first reference.
func (h PlaylistHandler) AddMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlist, ok := h.fetchPlaylist(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	var req addMovieRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid add movie payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	imdbID := strings.TrimSpace(req.IMDBID)
	if errs := validateIMDBID(imdbID); len(errs) > 0 {
		respondValidation(ctx, w, "Failed to add movie to playlist", errs)
		return
	}

	movie, err := h.Movies.GetOrCreate(ctx, models.Movie{
		ID:      uuid.NewString(),
		IMDBID:  imdbID,
		AddedAt: h.now(),
	})
	if err != nil {
		logger.Error("failed to get or create movie", "error", err, "imdbId", imdbID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to add movie to playlist")
		return
	}

	if err := h.Playlists.AddMovie(ctx, playlist.ID, movie.ID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondMessage(ctx, w, http.StatusBadRequest, fmt.Sprintf("Movie %s is already in this playlist", imdbID))
		case errors.Is(err, repositories.ErrNotFound):
			respondMessage(ctx, w, http.StatusNotFound, "Playlist not found")
		default:
			logger.Error("failed to add movie to playlist", "error", err, "playlistId", playlist.ID, "imdbId", imdbID)
			respondMessage(ctx, w, http.StatusInternalServerError, "failed to add movie to playlist")
		}
		return
	}

	updated, ok := h.fetchPlaylist(ctx, w, playlist.ID)
	if !ok {
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Movie %s added to playlist successfully", imdbID),
		"playlist": newPlaylistPayload(updated),
	})
}

// RemoveMovie handles DELETE /api/playlists/{id}/remove-movie/{imdb_id}/ requests.
// Only the association row is removed; the registry row persists.
func (h PlaylistHandler) RemoveMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	playlist, ok := h.fetchPlaylist(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	imdbID := r.PathValue("imdb_id")

	movie, err := h.Movies.FindByIMDBID(ctx, imdbID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Movie not found")
			return
		}
		logger.Error("failed to look up movie", "error", err, "imdbId", imdbID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to remove movie from playlist")
		return
	}

	if err := h.Playlists.RemoveMovie(ctx, playlist.ID, movie.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusBadRequest, fmt.Sprintf("Movie %s is not in this playlist", imdbID))
			return
		}
		logger.Error("failed to remove movie from playlist", "error", err, "playlistId", playlist.ID, "imdbId", imdbID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to remove movie from playlist")
		return
	}

	updated, ok := h.fetchPlaylist(ctx, w, playlist.ID)
	if !ok {
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Movie %s removed from playlist successfully", imdbID),
		"playlist": newPlaylistPayload(updated),
	})
}

func (h PlaylistHandler) fetchPlaylist(ctx context.Context, w http.ResponseWriter, id string) (models.Playlist, bool) {
	playlist, err := h.Playlists.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "Playlist not found")
			return models.Playlist{}, false
		}
		logging.FromContext(ctx).Error("failed to look up playlist", "error", err, "playlistId", id)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to look up playlist")
		return models.Playlist{}, false
	}
	return playlist, true
}

func validatePlaylistName(raw string) (string, fieldErrors) {
	errs := fieldErrors{}
	name := strings.TrimSpace(raw)
	if name == "" {
		errs.add("name", "Playlist name cannot be empty")
	} else if utf8.RuneCountInString(name) > models.MaxPlaylistNameLength {
		errs.add("name", fmt.Sprintf("Playlist name cannot exceed %d characters", models.MaxPlaylistNameLength))
	}
	if len(errs) > 0 {
		return "", errs
	}
	return name, nil
}

func validateIMDBID(imdbID string) fieldErrors {
	errs := fieldErrors{}
	if imdbID == "" {
		errs.add("imdb_id", "This field is required.")
		return errs
	}
	for _, r := range imdbID {
		if r < '0' || r > '9' {
			errs.add("imdb_id", "IMDb ID must contain only numbers (e.g., '1234567')")
			return errs
		}
	}
	if len(imdbID) < 7 {
		errs.add("imdb_id", "IMDb ID must be at least 7 digits")
	}
	return errs
}

type playlistRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type addMovieRequest struct {
	IMDBID string `json:"imdb_id"`
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
