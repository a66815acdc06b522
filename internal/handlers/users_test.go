package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "image/jpeg"

	"github.com/moviememo/backend/internal/models"
	"github.com/moviememo/backend/internal/repositories"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		switch {
		case existing.Email == user.Email:
			return repositories.ErrEmailTaken
		case existing.UID == user.UID:
			return repositories.ErrUIDTaken
		case existing.Username == user.Username:
			return repositories.ErrUsernameTaken
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) FindByUID(_ context.Context, uid string) (models.User, error) {
	for _, user := range s.users {
		if user.UID == uid {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	_, err := s.FindByUID(ctx, uid)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *inMemoryUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.FindByUsername(ctx, username)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *inMemoryUserStore) List(_ context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	return users, nil
}

func (s *inMemoryUserStore) UpdateUsername(_ context.Context, id, username string, changedAt time.Time) error {
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, existing := range s.users {
		if existing.ID != id && existing.Username == username {
			return repositories.ErrUsernameTaken
		}
	}
	user.Username = username
	user.UsernameChangedAt = &changedAt
	s.users[id] = user
	return nil
}

func (s *inMemoryUserStore) UpdateProfilePicture(_ context.Context, id, picture string, updatedAt time.Time) error {
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.ProfilePicture = picture
	user.ProfileUpdatedAt = &updatedAt
	s.users[id] = user
	return nil
}

type fakePictureStorage struct {
	saved   map[string][]byte
	deleted []string
}

func newFakePictureStorage() *fakePictureStorage {
	return &fakePictureStorage{saved: make(map[string][]byte)}
}

func (f *fakePictureStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.saved[name] = data
	return "https://cdn.test/" + name, nil
}

func (f *fakePictureStorage) Delete(_ context.Context, location string) error {
	f.deleted = append(f.deleted, location)
	return nil
}

func seedUser(t *testing.T, store *inMemoryUserStore, uid, username string) models.User {
	t.Helper()
	user := models.User{
		ID:        "user-" + uid,
		Email:     uid + "@example.com",
		UID:       uid,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestUserHandlerCreate(t *testing.T) {
	store := newInMemoryUserStore()
	handler := UserHandler{Users: store}

	body, _ := json.Marshal(createUserRequest{Email: "alice@example.com", UID: "auth0|alice", Username: "alice"})
	req := httptest.NewRequest(http.MethodPost, "/api/users/create/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	resp := decodeBody(t, rec)
	if resp["message"] != "User created successfully" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}

	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user object, got %v", resp["user"])
	}
	if _, leaked := user["email"]; leaked {
		t.Fatal("email must not appear in the public projection")
	}
	if user["uid"] != "auth0|alice" || user["username"] != "alice" {
		t.Fatalf("unexpected user payload: %v", user)
	}
	if user["profile_picture"] != DefaultProfilePictureURL {
		t.Fatalf("expected default profile picture, got %v", user["profile_picture"])
	}
}

func TestUserHandlerCreateRejectsDuplicates(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "auth0|alice", "alice")
	handler := UserHandler{Users: store}

	cases := []struct {
		name  string
		req   createUserRequest
		field string
	}{
		{"email", createUserRequest{Email: "auth0|alice@example.com", UID: "auth0|new", Username: "newbie"}, "email"},
		{"uid", createUserRequest{Email: "new@example.com", UID: "auth0|alice", Username: "newbie"}, "uid"},
		{"username", createUserRequest{Email: "new@example.com", UID: "auth0|new", Username: "alice"}, "username"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.req)
			req := httptest.NewRequest(http.MethodPost, "/api/users/create/", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
			}
			resp := decodeBody(t, rec)
			errs, ok := resp["errors"].(map[string]any)
			if !ok {
				t.Fatalf("expected errors object, got %v", resp)
			}
			if _, present := errs[tc.field]; !present {
				t.Fatalf("expected error on field %q, got %v", tc.field, errs)
			}
		})
	}
}

func TestUserHandlerCreateRejectsLongUsername(t *testing.T) {
	handler := UserHandler{Users: newInMemoryUserStore()}

	body, _ := json.Marshal(createUserRequest{
		Email:    "long@example.com",
		UID:      "auth0|long",
		Username: strings.Repeat("a", models.MaxUsernameLength+1),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/users/create/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
	resp := decodeBody(t, rec)
	errs := resp["errors"].(map[string]any)
	if _, present := errs["username"]; !present {
		t.Fatalf("expected username error, got %v", errs)
	}
}

func TestUserHandlerCreateCountsUsernameInCharacters(t *testing.T) {
	// Two-byte characters must count as one toward the limit.
	cases := []struct {
		name     string
		username string
		status   int
	}{
		{"multibyte within limit", strings.Repeat("ф", 10), http.StatusCreated},
		{"multibyte at limit", strings.Repeat("ф", models.MaxUsernameLength), http.StatusCreated},
		{"multibyte over limit", strings.Repeat("ф", models.MaxUsernameLength+1), http.StatusBadRequest},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := UserHandler{Users: newInMemoryUserStore()}
			body, _ := json.Marshal(createUserRequest{
				Email:    fmt.Sprintf("user%d@example.com", i),
				UID:      fmt.Sprintf("auth0|user%d", i),
				Username: tc.username,
			})
			req := httptest.NewRequest(http.MethodPost, "/api/users/create/", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUserHandlerCheckUID(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "auth0|alice", "alice")
	handler := UserHandler{Users: store}

	for _, tc := range []struct {
		uid    string
		exists bool
	}{
		{"auth0|alice", true},
		{"auth0|ghost", false},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/users/check/"+tc.uid+"/", nil)
		req.SetPathValue("uid", tc.uid)
		rec := httptest.NewRecorder()

		handler.CheckUID(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
		}
		resp := decodeBody(t, rec)
		if resp["exists"] != tc.exists || resp["uid"] != tc.uid {
			t.Fatalf("unexpected response for %q: %v", tc.uid, resp)
		}
	}
}

func TestUserHandlerGetByUID(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "auth0|alice", "alice")
	handler := UserHandler{Users: store}

	req := httptest.NewRequest(http.MethodGet, "/api/users/auth0|alice/", nil)
	req.SetPathValue("uid", "auth0|alice")
	rec := httptest.NewRecorder()

	handler.GetByUID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users/auth0|ghost/", nil)
	req.SetPathValue("uid", "auth0|ghost")
	rec = httptest.NewRecorder()

	handler.GetByUID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
	if resp := decodeBody(t, rec); resp["message"] != "User not found" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
}

func TestUserHandlerChangeUsername(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "auth0|alice", "alice")
	seedUser(t, store, "auth0|bob", "bob")
	handler := UserHandler{Users: store}

	body, _ := json.Marshal(changeUsernameRequest{Username: "alice2"})
	req := httptest.NewRequest(http.MethodPut, "/api/users/auth0|alice/change_username/", bytes.NewReader(body))
	req.SetPathValue("uid", "auth0|alice")
	rec := httptest.NewRecorder()

	handler.ChangeUsername(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	stored, err := store.FindByUID(context.Background(), "auth0|alice")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.Username != "alice2" {
		t.Fatalf("expected username change to persist, got %q", stored.Username)
	}
	if stored.UsernameChangedAt == nil {
		t.Fatal("expected username change timestamp to be recorded")
	}

	// A multi-byte name at the character limit is accepted.
	body, _ = json.Marshal(changeUsernameRequest{Username: strings.Repeat("я", models.MaxUsernameLength)})
	req = httptest.NewRequest(http.MethodPut, "/api/users/auth0|alice/change_username/", bytes.NewReader(body))
	req.SetPathValue("uid", "auth0|alice")
	rec = httptest.NewRecorder()

	handler.ChangeUsername(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	// Taking another user's name must fail with a field error.
	body, _ = json.Marshal(changeUsernameRequest{Username: "bob"})
	req = httptest.NewRequest(http.MethodPut, "/api/users/auth0|alice/change_username/", bytes.NewReader(body))
	req.SetPathValue("uid", "auth0|alice")
	rec = httptest.NewRecorder()

	handler.ChangeUsername(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := writer.CreateFormFile("profile_picture", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestUserHandlerUploadProfilePicture(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "auth0|alice", "alice")
	pictures := newFakePictureStorage()
	handler := UserHandler{Users: store, Pictures: pictures}

	body, contentType := multipartBody(t, map[string][]byte{"avatar.png": encodePNG(t, 640, 480)})
	req := httptest.NewRequest(http.MethodPut, "/api/users/alice/profile-picture/", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("username", "alice")
	rec := httptest.NewRecorder()

	handler.UploadProfilePicture(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	if len(pictures.saved) != 1 {
		t.Fatalf("expected one stored picture, got %d", len(pictures.saved))
	}
	for name, data := range pictures.saved {
		if !strings.HasPrefix(name, "profile_pictures/alice_") || !strings.HasSuffix(name, ".jpg") {
			t.Fatalf("unexpected object name %q", name)
		}
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode stored picture: %v", err)
		}
		if format != "jpeg" {
			t.Fatalf("expected jpeg, got %s", format)
		}
		bounds := img.Bounds()
		if bounds.Dx() != bounds.Dy() {
			t.Fatalf("expected square picture, got %dx%d", bounds.Dx(), bounds.Dy())
		}
	}

	stored, err := store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !strings.HasPrefix(stored.ProfilePicture, "https://cdn.test/profile_pictures/alice_") {
		t.Fatalf("expected stored location, got %q", stored.ProfilePicture)
	}
}

func TestUserHandlerUploadReplacesPreviousPicture(t *testing.T) {
	store := newInMemoryUserStore()
	user := seedUser(t, store, "auth0|alice", "alice")
	pictures := newFakePictureStorage()
	handler := UserHandler{Users: store, Pictures: pictures}

	previous := "https://cdn.test/profile_pictures/alice_1.jpg"
	if err := store.UpdateProfilePicture(context.Background(), user.ID, previous, time.Now().UTC()); err != nil {
		t.Fatalf("seed previous picture: %v", err)
	}

	body, contentType := multipartBody(t, map[string][]byte{"avatar.png": encodePNG(t, 64, 64)})
	req := httptest.NewRequest(http.MethodPut, "/api/users/alice/profile-picture/", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("username", "alice")
	rec := httptest.NewRecorder()

	handler.UploadProfilePicture(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if len(pictures.deleted) != 1 || pictures.deleted[0] != previous {
		t.Fatalf("expected previous picture to be deleted, got %v", pictures.deleted)
	}
}

func TestUserHandlerUploadRejectsBadFiles(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "auth0|alice", "alice")
	handler := UserHandler{Users: store, Pictures: newFakePictureStorage()}

	t.Run("wrong extension", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]byte{"notes.txt": []byte("not an image")})
		req := httptest.NewRequest(http.MethodPut, "/api/users/alice/profile-picture/", body)
		req.Header.Set("Content-Type", contentType)
		req.SetPathValue("username", "alice")
		rec := httptest.NewRecorder()

		handler.UploadProfilePicture(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("multiple files", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]byte{
			"one.png": encodePNG(t, 8, 8),
			"two.png": encodePNG(t, 8, 8),
		})
		req := httptest.NewRequest(http.MethodPut, "/api/users/alice/profile-picture/", body)
		req.Header.Set("Content-Type", contentType)
		req.SetPathValue("username", "alice")
		rec := httptest.NewRecorder()

		handler.UploadProfilePicture(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("oversized file", func(t *testing.T) {
		oversized := UserHandler{Users: store, Pictures: newFakePictureStorage(), UploadMaxBytes: 1024}
		body, contentType := multipartBody(t, map[string][]byte{"big.png": bytes.Repeat([]byte{0xff}, 4096)})
		req := httptest.NewRequest(http.MethodPut, "/api/users/alice/profile-picture/", body)
		req.Header.Set("Content-Type", contentType)
		req.SetPathValue("username", "alice")
		rec := httptest.NewRecorder()

		oversized.UploadProfilePicture(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("corrupt image", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]byte{"avatar.png": []byte("garbage bytes")})
		req := httptest.NewRequest(http.MethodPut, "/api/users/alice/profile-picture/", body)
		req.Header.Set("Content-Type", contentType)
		req.SetPathValue("username", "alice")
		rec := httptest.NewRecorder()

		handler.UploadProfilePicture(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
		}
		if resp := decodeBody(t, rec); resp["message"] != "Could not process image file" {
			t.Fatalf("unexpected message: %v", resp["message"])
		}
	})
}

func TestUserHandlerList(t *testing.T) {
	store := newInMemoryUserStore()
	seedUser(t, store, "auth0|alice", "alice")
	seedUser(t, store, "auth0|bob", "bob")
	handler := UserHandler{Users: store}

	req := httptest.NewRequest(http.MethodGet, "/api/users/all/", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", resp["count"])
	}
	users, ok := resp["users"].([]any)
	if !ok || len(users) != 2 {
		t.Fatalf("expected 2 users, got %v", resp["users"])
	}
	for _, entry := range users {
		if _, leaked := entry.(map[string]any)["email"]; leaked {
			t.Fatal("email must not appear in the public projection")
		}
	}
}
