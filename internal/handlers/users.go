package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/moviememo/backend/internal/images"
	"github.com/moviememo/backend/internal/logging"
	"github.com/moviememo/backend/internal/models"
	"github.com/moviememo/backend/internal/repositories"
)

// acceptedPictureExtensions is the upload whitelist. Acceptance here does
// not guarantee decodability; HEIC passes the extension check and fails at
// decode time with a client error.
var acceptedPictureExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".bmp": {}, ".webp": {}, ".heic": {}, ".heif": {},
}

// UserHandler implements the user directory endpoints.
type UserHandler struct {
	Users          UserStore
	Pictures       PictureStorage
	Limiter        RateLimiter
	UploadMaxBytes int64
	NowFunc        func() time.Time
}

// Create handles POST /api/users/create/ requests.
func (h UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "user service unavailable")
		return
	}

	if !allowRequest(h.Limiter, r, "user-create") {
		respondMessage(ctx, w, http.StatusTooManyRequests, "too many requests, slow down")
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid create user payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.UID = strings.TrimSpace(req.UID)
	req.Username = strings.TrimSpace(req.Username)

	errs := fieldErrors{}
	if req.Email == "" {
		errs.add("email", "This field is required.")
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		errs.add("email", "Enter a valid email address.")
	}
	if req.UID == "" {
		errs.add("uid", "This field is required.")
	}
	if req.Username == "" {
		errs.add("username", "This field is required.")
	} else if utf8.RuneCountInString(req.Username) > models.MaxUsernameLength {
		errs.add("username", fmt.Sprintf("Username cannot exceed %d characters", models.MaxUsernameLength))
	}
	if len(errs) > 0 {
		respondValidation(ctx, w, "Failed to create user", errs)
		return
	}

	user := models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		UID:       req.UID,
		Username:  req.Username,
		CreatedAt: h.now(),
	}

	if err := h.Users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrEmailTaken):
			errs.add("email", "A user with this email already exists.")
		case errors.Is(err, repositories.ErrUIDTaken):
			errs.add("uid", "A user with this UID already exists.")
		case errors.Is(err, repositories.ErrUsernameTaken):
			errs.add("username", "A user with this username already exists.")
		default:
			logger.Error("failed to create user", "error", err, "uid", req.UID)
			respondMessage(ctx, w, http.StatusInternalServerError, "failed to create user")
			return
		}
		respondValidation(ctx, w, "Failed to create user", errs)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    newUserPayload(user),
	})
}

// List handles GET /api/users/all/ requests.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.Users.List(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list users", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to list users")
		return
	}

	payloads := make([]userPayload, 0, len(users))
	for _, user := range users {
		payloads = append(payloads, newUserPayload(user))
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"users": payloads,
		"count": len(payloads),
	})
}

// CheckUID handles GET /api/users/check/{uid}/ requests.
func (h UserHandler) CheckUID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := r.PathValue("uid")

	exists, err := h.Users.ExistsByUID(ctx, uid)
	if err != nil {
		logging.FromContext(ctx).Error("failed to check user by uid", "error", err, "uid", uid)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to check user")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"exists": exists,
		"uid":    uid,
	})
}

// CheckUsername handles GET /api/users/check/username/{username}/ requests.
func (h UserHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PathValue("username")

	exists, err := h.Users.ExistsByUsername(ctx, username)
	if err != nil {
		logging.FromContext(ctx).Error("failed to check user by username", "error", err, "username", username)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to check user")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"exists":   exists,
		"username": username,
	})
}

// GetByUID handles GET /api/users/{uid}/ requests.
func (h UserHandler) GetByUID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByUID(ctx, r.PathValue("uid"))
	if err != nil {
		h.respondUserLookupError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": newUserPayload(user)})
}

// GetByUsername handles GET /api/users/username/{username}/ requests.
func (h UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByUsername(ctx, r.PathValue("username"))
	if err != nil {
		h.respondUserLookupError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": newUserPayload(user)})
}

// ChangeUsername handles PUT /api/users/{uid}/change_username/ requests.
// The change timestamp is recorded but no cooldown is enforced.
func (h UserHandler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := h.Users.FindByUID(ctx, r.PathValue("uid"))
	if err != nil {
		h.respondUserLookupError(ctx, w, err)
		return
	}

	var req changeUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid change username payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	errs := fieldErrors{}
	if req.Username == "" {
		errs.add("username", "This field is required.")
	} else if utf8.RuneCountInString(req.Username) > models.MaxUsernameLength {
		errs.add("username", fmt.Sprintf("Username cannot exceed %d characters", models.MaxUsernameLength))
	}
	if len(errs) > 0 {
		respondValidation(ctx, w, "Failed to change username", errs)
		return
	}

	changedAt := h.now()
	if err := h.Users.UpdateUsername(ctx, user.ID, req.Username, changedAt); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsernameTaken):
			errs.add("username", "A user with this username already exists.")
			respondValidation(ctx, w, "Failed to change username", errs)
		case errors.Is(err, repositories.ErrNotFound):
			respondMessage(ctx, w, http.StatusNotFound, "User not found")
		default:
			logger.Error("failed to change username", "error", err, "userId", user.ID)
			respondMessage(ctx, w, http.StatusInternalServerError, "failed to change username")
		}
		return
	}

	user.Username = req.Username
	user.UsernameChangedAt = &changedAt

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Username updated successfully",
		"user":    newUserPayload(user),
	})
}

// UploadProfilePicture handles PUT /api/users/{username}/profile-picture/ requests.
// Exactly one image file is accepted; it is normalized to a square JPEG and
// the previous picture, if any, is deleted best-effort.
func (h UserHandler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Pictures == nil {
		logger.Error("picture storage unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "picture storage unavailable")
		return
	}

	if !allowRequest(h.Limiter, r, "picture-upload") {
		respondMessage(ctx, w, http.StatusTooManyRequests, "too many requests, slow down")
		return
	}

	user, err := h.Users.FindByUsername(ctx, r.PathValue("username"))
	if err != nil {
		h.respondUserLookupError(ctx, w, err)
		return
	}

	maxBytes := h.UploadMaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}

	// Extra headroom for multipart framing; the per-file size check below
	// enforces the documented limit.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondValidation(ctx, w, "Failed to upload profile picture", fieldErrors{
				"file": {fmt.Sprintf("File exceeds the maximum size of %d bytes", maxBytes)},
			})
			return
		}
		logger.Warn("invalid multipart payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	header, errs := singleUploadedFile(r.MultipartForm, maxBytes)
	if len(errs) > 0 {
		respondValidation(ctx, w, "Failed to upload profile picture", errs)
		return
	}

	file, err := header.Open()
	if err != nil {
		logger.Error("failed to open uploaded file", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}
	defer file.Close()

	ctx, span := logging.StartSpan(ctx, "profile_picture_upload")
	defer span.End()

	normalized, err := images.NormalizeProfilePicture(file)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to normalize picture", "error", err, "filename", header.Filename)
		respondMessage(ctx, w, http.StatusBadRequest, "Could not process image file")
		return
	}

	if user.ProfilePicture != "" {
		if err := h.Pictures.Delete(ctx, user.ProfilePicture); err != nil {
			logging.FromContext(ctx).Warn("failed to delete previous picture", "error", err, "location", user.ProfilePicture)
		}
	}

	now := h.now()
	name := fmt.Sprintf("profile_pictures/%s_%d.jpg", user.Username, now.Unix())

	location, err := h.Pictures.Save(ctx, name, bytes.NewReader(normalized))
	if err != nil {
		logging.FromContext(ctx).Error("failed to store picture", "error", err, "name", name)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to store profile picture")
		return
	}

	if err := h.Users.UpdateProfilePicture(ctx, user.ID, location, now); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondMessage(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		logging.FromContext(ctx).Error("failed to record picture", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to update profile picture")
		return
	}

	user.ProfilePicture = location
	user.ProfileUpdatedAt = &now

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Profile picture updated successfully",
		"user":    newUserPayload(user),
	})
}

// singleUploadedFile enforces the one-file contract and the per-file limits.
func singleUploadedFile(form *multipart.Form, maxBytes int64) (*multipart.FileHeader, fieldErrors) {
	errs := fieldErrors{}

	var headers []*multipart.FileHeader
	for _, fieldHeaders := range form.File {
		headers = append(headers, fieldHeaders...)
	}

	switch {
	case len(headers) == 0:
		errs.add("file", "No file was submitted.")
		return nil, errs
	case len(headers) > 1:
		errs.add("file", "Only one file may be uploaded.")
		return nil, errs
	}

	header := headers[0]

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := acceptedPictureExtensions[ext]; !ok {
		errs.add("file", fmt.Sprintf("Unsupported file extension %q", ext))
	}
	if header.Size > maxBytes {
		errs.add("file", fmt.Sprintf("File exceeds the maximum size of %d bytes", maxBytes))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return header, nil
}

func (h UserHandler) respondUserLookupError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, repositories.ErrNotFound) {
		respondMessage(ctx, w, http.StatusNotFound, "User not found")
		return
	}
	logging.FromContext(ctx).Error("failed to look up user", "error", err)
	respondMessage(ctx, w, http.StatusInternalServerError, "failed to look up user")
}

type createUserRequest struct {
	Email    string `json:"email"`
	UID      string `json:"uid"`
	Username string `json:"username"`
}

type changeUsernameRequest struct {
	Username string `json:"username"`
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
