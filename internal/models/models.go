package models

import "time"

// User represents an account within the MovieMemo platform. Email is
// private and must never appear in API responses.
type User struct {
	ID                string
	Email             string
	UID               string
	Username          string
	ProfilePicture    string
	CreatedAt         time.Time
	ProfileUpdatedAt  *time.Time
	UsernameChangedAt *time.Time
}

// MaxUsernameLength bounds display usernames.
const MaxUsernameLength = 16

// Movie references an entry in the external catalog. The service stores
// nothing beyond the catalog id; titles and artwork are resolved by clients
// against the catalog directly.
type Movie struct {
	ID      string
	IMDBID  string
	AddedAt time.Time
}

// Playlist is a user-owned collection of movie references.
type Playlist struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UserID      string
	User        User
	Movies      []Movie
}

// MaxPlaylistNameLength bounds playlist names.
const MaxPlaylistNameLength = 100
