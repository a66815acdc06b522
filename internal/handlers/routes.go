package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	users := UserHandler{
		Users:          deps.Users,
		Pictures:       deps.Pictures,
		Limiter:        deps.WriteLimiter,
		UploadMaxBytes: deps.UploadMaxBytes,
	}
	playlists := PlaylistHandler{
		Users:     deps.Users,
		Playlists: deps.Playlists,
		Movies:    deps.Movies,
	}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/users/create/{$}", users.Create)
	mux.HandleFunc("GET /api/users/all/{$}", users.List)
	mux.HandleFunc("GET /api/users/check/{uid}/{$}", users.CheckUID)
	mux.HandleFunc("GET /api/users/check/username/{username}/{$}", users.CheckUsername)
	mux.HandleFunc("GET /api/users/username/{username}/{$}", users.GetByUsername)
	mux.HandleFunc("GET /api/users/{uid}/{$}", users.GetByUID)
	mux.HandleFunc("PUT /api/users/{uid}/change_username/{$}", users.ChangeUsername)
	mux.HandleFunc("PUT /api/users/{username}/profile-picture/{$}", users.UploadProfilePicture)

	// "create/{user_uid}" and "{id}/add-movie" overlap without either being
	// more specific, which ServeMux rejects, so both go through one pattern.
	mux.HandleFunc("POST /api/playlists/{first}/{second}/{$}", func(w http.ResponseWriter, r *http.Request) {
		first, second := r.PathValue("first"), r.PathValue("second")
		switch {
		case first == "create":
			r.SetPathValue("user_uid", second)
			playlists.Create(w, r)
		case second == "add-movie":
			r.SetPathValue("id", first)
			playlists.AddMovie(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("GET /api/playlists/user/{user_uid}/{$}", playlists.ListByUser)
	mux.HandleFunc("GET /api/playlists/all/{$}", playlists.ListAll)
	mux.HandleFunc("GET /api/playlists/{id}/{$}", playlists.Get)
	mux.HandleFunc("PUT /api/playlists/{id}/update/{$}", playlists.Update)
	mux.HandleFunc("DELETE /api/playlists/{id}/delete/{$}", playlists.Delete)
	mux.HandleFunc("DELETE /api/playlists/{id}/remove-movie/{imdb_id}/{$}", playlists.RemoveMovie)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users          UserStore
	Playlists      PlaylistStore
	Movies         MovieStore
	Pictures       PictureStorage
	WriteLimiter   RateLimiter
	UploadMaxBytes int64
}
