package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/moviememo/backend/internal/db"
	"github.com/moviememo/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, uid, username, profile_picture, created_at, profile_updated_at, username_changed_at`

// Create persists a new user record. Uniqueness violations are mapped to
// field-specific errors by constraint name so validation stays accurate
// even when two creates race.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, uid, username, profile_picture, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, user.Email, user.UID, user.Username, user.ProfilePicture, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_email_key":
				return ErrEmailTaken
			case "users_uid_key":
				return ErrUIDTaken
			case "users_username_key":
				return ErrUsernameTaken
			}
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByUID fetches a user by their external auth uid.
func (r *PostgresUserRepository) FindByUID(ctx context.Context, uid string) (models.User, error) {
	return r.findBy(ctx, "uid", uid)
}

// FindByUsername fetches a user by their display username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *PostgresUserRepository) findBy(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s
        FROM users
        WHERE %s = $1
    `, userColumns, column), value)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// ExistsByUID reports whether a user with the given uid exists.
func (r *PostgresUserRepository) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	return r.existsBy(ctx, "uid", uid)
}

// ExistsByUsername reports whether a user with the given username exists.
func (r *PostgresUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.existsBy(ctx, "username", username)
}

func (r *PostgresUserRepository) existsBy(ctx context.Context, column, value string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT EXISTS (SELECT 1 FROM users WHERE %s = $1)
    `, column), value)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check user by %s: %w", column, err)
	}

	return exists, nil
}

// List returns every user record, newest first.
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, fmt.Sprintf(`
        SELECT %s
        FROM users
        ORDER BY created_at DESC
    `, userColumns))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// UpdateUsername changes a user's display name and records when it happened.
func (r *PostgresUserRepository) UpdateUsername(ctx context.Context, id, username string, changedAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET username = $2, username_changed_at = $3
        WHERE id = $1
    `, id, username, changedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("update username: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateProfilePicture stores the object key of a freshly uploaded picture.
func (r *PostgresUserRepository) UpdateProfilePicture(ctx context.Context, id, picture string, updatedAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET profile_picture = $2, profile_updated_at = $3
        WHERE id = $1
    `, id, picture, updatedAt)
	if err != nil {
		return fmt.Errorf("update profile picture: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user              models.User
		profileUpdatedAt  sql.NullTime
		usernameChangedAt sql.NullTime
	)

	if err := row.Scan(&user.ID, &user.Email, &user.UID, &user.Username, &user.ProfilePicture,
		&user.CreatedAt, &profileUpdatedAt, &usernameChangedAt); err != nil {
		return models.User{}, err
	}

	if profileUpdatedAt.Valid {
		t := profileUpdatedAt.Time.UTC()
		user.ProfileUpdatedAt = &t
	}
	if usernameChangedAt.Valid {
		t := usernameChangedAt.Time.UTC()
		user.UsernameChangedAt = &t
	}

	return user, nil
}

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for playlists.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

// Create persists a new playlist record.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	description := sql.NullString{String: playlist.Description, Valid: playlist.Description != ""}

	_, err = conn.Exec(ctx, `
        INSERT INTO playlists (id, name, description, created_at, user_id)
        VALUES ($1, $2, $3, $4, $5)
    `, playlist.ID, playlist.Name, description, playlist.CreatedAt, playlist.UserID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert playlist: %w", err)
	}

	return nil
}

const playlistColumns = `
        p.id, p.name, p.description, p.created_at, p.user_id,
        u.id, u.email, u.uid, u.username, u.profile_picture, u.created_at, u.profile_updated_at, u.username_changed_at`

// FindByID fetches one playlist with its owner and movie list populated.
func (r *PostgresPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s
        FROM playlists p
        JOIN users u ON u.id = p.user_id
        WHERE p.id = $1
    `, playlistColumns), id)

	playlist, err := scanPlaylist(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("select playlist: %w", err)
	}

	if err := r.loadMovies(ctx, conn, []*models.Playlist{&playlist}); err != nil {
		return models.Playlist{}, err
	}

	return playlist, nil
}

// ListByUser returns all playlists owned by the given user, newest first.
func (r *PostgresPlaylistRepository) ListByUser(ctx context.Context, userID string) ([]models.Playlist, error) {
	return r.list(ctx, `WHERE p.user_id = $1`, userID)
}

// ListAll returns every playlist, newest first.
func (r *PostgresPlaylistRepository) ListAll(ctx context.Context) ([]models.Playlist, error) {
	return r.list(ctx, "")
}

func (r *PostgresPlaylistRepository) list(ctx context.Context, where string, args ...any) ([]models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, fmt.Sprintf(`
        SELECT %s
        FROM playlists p
        JOIN users u ON u.id = p.user_id
        %s
        ORDER BY p.created_at DESC
    `, playlistColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}

	refs := make([]*models.Playlist, len(playlists))
	for i := range playlists {
		refs[i] = &playlists[i]
	}
	if err := r.loadMovies(ctx, conn, refs); err != nil {
		return nil, err
	}

	return playlists, nil
}

// Update modifies a playlist's name and description.
func (r *PostgresPlaylistRepository) Update(ctx context.Context, playlist models.Playlist) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	description := sql.NullString{String: playlist.Description, Valid: playlist.Description != ""}

	tag, err := conn.Exec(ctx, `
        UPDATE playlists
        SET name = $2, description = $3
        WHERE id = $1
    `, playlist.ID, playlist.Name, description)
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a playlist. Association rows cascade; movie rows are untouched.
func (r *PostgresPlaylistRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM playlists
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddMovie links a movie to a playlist. The insert is idempotent at the
// database level; an existing association surfaces as ErrConflict so the
// handler can report it, and a concurrent duplicate add converges on a
// single row instead of failing.
func (r *PostgresPlaylistRepository) AddMovie(ctx context.Context, playlistID, movieID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        INSERT INTO playlist_movies (playlist_id, movie_id, added_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (playlist_id, movie_id) DO NOTHING
    `, playlistID, movieID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert playlist movie: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	return nil
}

// RemoveMovie unlinks a movie from a playlist, leaving the movie row in place.
func (r *PostgresPlaylistRepository) RemoveMovie(ctx context.Context, playlistID, movieID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM playlist_movies
        WHERE playlist_id = $1 AND movie_id = $2
    `, playlistID, movieID)
	if err != nil {
		return fmt.Errorf("delete playlist movie: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresPlaylistRepository) loadMovies(ctx context.Context, conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, playlists []*models.Playlist) error {
	if len(playlists) == 0 {
		return nil
	}

	ids := make([]string, len(playlists))
	byID := make(map[string]*models.Playlist, len(playlists))
	for i, p := range playlists {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := conn.Query(ctx, `
        SELECT pm.playlist_id, m.id, m.imdb_id, m.added_at
        FROM playlist_movies pm
        JOIN movies m ON m.id = pm.movie_id
        WHERE pm.playlist_id = ANY($1)
        ORDER BY pm.added_at
    `, ids)
	if err != nil {
		return fmt.Errorf("query playlist movies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			playlistID string
			movie      models.Movie
		)
		if err := rows.Scan(&playlistID, &movie.ID, &movie.IMDBID, &movie.AddedAt); err != nil {
			return fmt.Errorf("scan playlist movie: %w", err)
		}
		if p, ok := byID[playlistID]; ok {
			p.Movies = append(p.Movies, movie)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate playlist movies: %w", err)
	}

	return nil
}

func scanPlaylist(row rowScanner) (models.Playlist, error) {
	var (
		playlist          models.Playlist
		description       sql.NullString
		profileUpdatedAt  sql.NullTime
		usernameChangedAt sql.NullTime
	)

	if err := row.Scan(&playlist.ID, &playlist.Name, &description, &playlist.CreatedAt, &playlist.UserID,
		&playlist.User.ID, &playlist.User.Email, &playlist.User.UID, &playlist.User.Username,
		&playlist.User.ProfilePicture, &playlist.User.CreatedAt, &profileUpdatedAt, &usernameChangedAt); err != nil {
		return models.Playlist{}, err
	}

	playlist.Description = description.String
	if profileUpdatedAt.Valid {
		t := profileUpdatedAt.Time.UTC()
		playlist.User.ProfileUpdatedAt = &t
	}
	if usernameChangedAt.Valid {
		t := usernameChangedAt.Time.UTC()
		playlist.User.UsernameChangedAt = &t
	}

	return playlist, nil
}

// PostgresMovieRepository provides PostgreSQL-backed persistence for the movie registry.
type PostgresMovieRepository struct {
	pool db.Pool
}

// NewPostgresMovieRepository constructs a movie repository backed by PostgreSQL.
func NewPostgresMovieRepository(pool db.Pool) *PostgresMovieRepository {
	return &PostgresMovieRepository{pool: pool}
}

// GetOrCreate returns the registry row for the given catalog id, inserting
// it first if absent. The insert-ignore keeps concurrent calls idempotent;
// both callers read back the surviving row.
func (r *PostgresMovieRepository) GetOrCreate(ctx context.Context, movie models.Movie) (models.Movie, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Movie{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        INSERT INTO movies (id, imdb_id, added_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (imdb_id) DO NOTHING
    `, movie.ID, movie.IMDBID, movie.AddedAt); err != nil {
		return models.Movie{}, fmt.Errorf("insert movie: %w", err)
	}

	row := conn.QueryRow(ctx, `
        SELECT id, imdb_id, added_at
        FROM movies
        WHERE imdb_id = $1
    `, movie.IMDBID)

	var stored models.Movie
	if err := row.Scan(&stored.ID, &stored.IMDBID, &stored.AddedAt); err != nil {
		return models.Movie{}, fmt.Errorf("select movie: %w", err)
	}

	return stored, nil
}

// FindByIMDBID fetches a registry row by its catalog id.
func (r *PostgresMovieRepository) FindByIMDBID(ctx context.Context, imdbID string) (models.Movie, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Movie{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, imdb_id, added_at
        FROM movies
        WHERE imdb_id = $1
    `, imdbID)

	var movie models.Movie
	if err := row.Scan(&movie.ID, &movie.IMDBID, &movie.AddedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Movie{}, ErrNotFound
		}
		return models.Movie{}, fmt.Errorf("select movie by imdb id: %w", err)
	}

	return movie, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ PlaylistRepository = (*PostgresPlaylistRepository)(nil)
var _ MovieRepository = (*PostgresMovieRepository)(nil)
