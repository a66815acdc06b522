package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/moviememo/backend/internal/logging"
	"github.com/moviememo/backend/internal/models"
)

// DefaultProfilePictureURL is served for users who never uploaded a picture.
const DefaultProfilePictureURL = "/static/profile_pictures/default.jpg"

// userPayload is the public user projection. Email is deliberately absent.
type userPayload struct {
	ID             string    `json:"id"`
	UID            string    `json:"uid"`
	Username       string    `json:"username"`
	CreatedAt      time.Time `json:"created_at"`
	ProfilePicture string    `json:"profile_picture"`
}

type moviePayload struct {
	ID      string    `json:"id"`
	IMDBID  string    `json:"imdb_id"`
	AddedAt time.Time `json:"added_at"`
}

type playlistPayload struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	User        userPayload    `json:"user"`
	Movies      []moviePayload `json:"movies"`
	MovieCount  int            `json:"movie_count"`
}

func newUserPayload(user models.User) userPayload {
	picture := user.ProfilePicture
	if picture == "" {
		picture = DefaultProfilePictureURL
	}
	return userPayload{
		ID:             user.ID,
		UID:            user.UID,
		Username:       user.Username,
		CreatedAt:      user.CreatedAt,
		ProfilePicture: picture,
	}
}

func newPlaylistPayload(playlist models.Playlist) playlistPayload {
	movies := make([]moviePayload, 0, len(playlist.Movies))
	for _, movie := range playlist.Movies {
		movies = append(movies, moviePayload{ID: movie.ID, IMDBID: movie.IMDBID, AddedAt: movie.AddedAt})
	}
	return playlistPayload{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Description: playlist.Description,
		CreatedAt:   playlist.CreatedAt,
		User:        newUserPayload(playlist.User),
		Movies:      movies,
		MovieCount:  len(movies),
	}
}

func newPlaylistPayloads(playlists []models.Playlist) []playlistPayload {
	payloads := make([]playlistPayload, 0, len(playlists))
	for _, playlist := range playlists {
		payloads = append(payloads, newPlaylistPayload(playlist))
	}
	return payloads
}

// fieldErrors accumulates per-field validation messages for the `errors`
// response envelope.
type fieldErrors map[string][]string

func (fe fieldErrors) add(field, message string) {
	fe[field] = append(fe[field], message)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondMessage(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"message": message})
}

func respondValidation(ctx context.Context, w http.ResponseWriter, message string, errs fieldErrors) {
	respondJSON(ctx, w, http.StatusBadRequest, map[string]any{
		"message": message,
		"errors":  errs,
	})
}
