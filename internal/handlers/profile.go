package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/admingate/apiserver/internal/auth"
	"github.com/admingate/apiserver/internal/services"
	"github.com/admingate/apiserver/internal/storage"
	"github.com/admingate/apiserver/internal/store"
	"github.com/admingate/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxAvatarBytes     = 5 << 20
	formFieldAvatar    = "avatar"
	maxMultipartMemory = 8 << 20
)

// ProfileHandler provides the authenticated self-service endpoints.
type ProfileHandler struct {
	adminService *services.AdminService
	avatars      storage.ObjectStorage
}

func NewProfileHandler(adminService *services.AdminService, avatars storage.ObjectStorage) *ProfileHandler {
	return &ProfileHandler{
		adminService: adminService,
		avatars:      avatars,
	}
}

// ProfileRouter registers the profile routes behind the auth middleware.
// Avatar routes are only registered when object storage is configured.
func ProfileRouter(r chi.Router, adminService *services.AdminService, avatars storage.ObjectStorage, authMiddleware func(http.Handler) http.Handler) {
	handler := NewProfileHandler(adminService, avatars)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/profile", handler.GetProfile)
		r.Put("/profile", handler.UpdateProfile)
		r.Put("/change-password", handler.ChangePassword)
		if avatars != nil {
			r.Put("/profile/avatar", handler.UploadAvatar)
			r.Get("/profile/avatar", handler.GetAvatar)
		}
	})
}

// GetProfile returns the authenticated admin's own record.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	admin, err := h.currentAdmin(w, r)
	if err != nil {
		return
	}
	writeData(w, http.StatusOK, "", admin)
}

// UpdateProfile selectively mutates the caller-editable fields (name, notes).
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	admin, err := h.currentAdmin(w, r)
	if err != nil {
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	name := admin.Name
	notes := admin.Notes
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
	}
	if req.Notes != nil {
		notes = *req.Notes
	}

	if err := h.adminService.UpdateProfile(r.Context(), admin.ID, name, notes); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	admin.Name = name
	admin.Notes = notes
	writeData(w, http.StatusOK, "profile updated", admin)
}

// ChangePassword replaces the stored hash after re-authenticating the caller.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	adminID, err := adminIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		writeError(w, http.StatusBadRequest, "currentPassword, newPassword and confirmPassword are required")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if reasons := auth.ValidatePasswordStrength(req.NewPassword); len(reasons) > 0 {
		writeErrorDetails(w, http.StatusBadRequest, "password does not meet requirements", reasons)
		return
	}

	admin, err := h.adminService.GetCredentialsByID(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	if !auth.ComparePassword(admin.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	if err := h.adminService.UpdatePassword(r.Context(), admin.ID, passwordHash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	writeMessage(w, http.StatusOK, "password changed successfully")
}

// UploadAvatar stores the multipart image under the admin's avatar key.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	admin, err := h.currentAdmin(w, r)
	if err != nil {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusBadRequest, "avatar exceeds the 5MB limit")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read avatar")
		return
	}
	if len(data) > maxAvatarBytes {
		writeError(w, http.StatusBadRequest, "avatar exceeds the 5MB limit")
		return
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "avatar must be an image")
		return
	}

	key := storage.AvatarKey(admin.ID)
	if err := h.avatars.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	if err := h.adminService.SetAvatarKey(r.Context(), admin.ID, key); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	writeMessage(w, http.StatusOK, "avatar updated")
}

// GetAvatar streams the stored avatar back to the caller.
func (h *ProfileHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	admin, err := h.currentAdmin(w, r)
	if err != nil {
		return
	}
	if admin.AvatarKey == "" {
		writeError(w, http.StatusNotFound, "no avatar uploaded")
		return
	}

	object, err := h.avatars.Get(r.Context(), admin.AvatarKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load avatar")
		return
	}
	defer object.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(object, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusInternalServerError, "failed to load avatar")
		return
	}
	head = head[:n]

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(head)
	_, _ = io.Copy(w, object)
}

// currentAdmin resolves the already-authenticated identity to its record,
// writing the error response itself on failure.
func (h *ProfileHandler) currentAdmin(w http.ResponseWriter, r *http.Request) (types.Admin, error) {
	adminID, err := adminIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Admin{}, err
	}

	record, err := h.adminService.GetByID(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return types.Admin{}, err
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return types.Admin{}, err
	}
	return record, nil
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}
