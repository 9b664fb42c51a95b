package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/admingate/apiserver/internal/auth"
	"github.com/admingate/apiserver/internal/mailer"
	"github.com/admingate/apiserver/internal/services"
	"github.com/admingate/apiserver/internal/store"
	"github.com/admingate/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const defaultSessionTTL = 24 * time.Hour
const defaultAdminRole = "admin"

// Distinct login rejection messages. The frontend matches on the word
// "verify" to offer a resend action, so that message must keep it.
const (
	msgInvalidCredentials = "invalid credentials"
	msgUnverified         = "please verify your email address before logging in"
	msgSuspended          = "your account has been suspended"
	msgInactive           = "your account is inactive"
)

// AccountHandler provides the admin account lifecycle endpoints.
type AccountHandler struct {
	adminService *services.AdminService
	dispatcher   *mailer.Dispatcher
	frontendURL  string
	secret       []byte
	sessionTTL   time.Duration
}

// NewAccountHandler constructs an AccountHandler with the provided dependencies.
func NewAccountHandler(adminService *services.AdminService, dispatcher *mailer.Dispatcher, frontendURL, jwtSecret string) *AccountHandler {
	return &AccountHandler{
		adminService: adminService,
		dispatcher:   dispatcher,
		frontendURL:  frontendURL,
		secret:       []byte(jwtSecret),
		sessionTTL:   defaultSessionTTL,
	}
}

// AccountRouter registers the unauthenticated account routes.
func AccountRouter(r chi.Router, adminService *services.AdminService, dispatcher *mailer.Dispatcher, frontendURL, jwtSecret string) {
	handler := NewAccountHandler(adminService, dispatcher, frontendURL, jwtSecret)

	r.Post("/signup", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/verify", handler.VerifyEmail)
	r.Post("/resend-verification", handler.ResendVerification)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
}

// RequireAuth enforces the session token and injects the subject into context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			subject, err := auth.ParseSessionSubject(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates a new, unverified admin account and queues the
// verification email.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" {
		writeError(w, http.StatusBadRequest, "name, email, password and confirmPassword are required")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if reasons := auth.ValidatePasswordStrength(req.Password); len(reasons) > 0 {
		writeErrorDetails(w, http.StatusBadRequest, "password does not meet requirements", reasons)
		return
	}

	if _, err := h.adminService.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to check email")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	tokenHash := auth.HashToken(token)
	expiry := time.Now().Add(auth.VerificationTokenTTL)

	admin, err := h.adminService.Create(r.Context(), types.Admin{
		Name:                  req.Name,
		Email:                 req.Email,
		PasswordHash:          passwordHash,
		Role:                  defaultAdminRole,
		Permissions:           []string{},
		Status:                types.StatusActive,
		IsVerified:            false,
		VerificationTokenHash: &tokenHash,
		VerificationExpiry:    &expiry,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	// Best effort: a send failure is logged by the dispatcher and never
	// fails the registration.
	h.dispatcher.Dispatch(r.Context(), mailer.VerificationMessage(h.frontendURL, admin.Email, token))

	writeData(w, http.StatusCreated, "account created, please verify your email", admin)
}

// Login verifies credentials and account state and returns a session token.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	admin, err := h.adminService.GetCredentialsByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	// Account state is checked before the password so a suspended or
	// unverified account always gets the same answer.
	if !admin.IsVerified {
		writeError(w, http.StatusForbidden, msgUnverified)
		return
	}
	switch admin.Status {
	case types.StatusSuspended:
		writeError(w, http.StatusForbidden, msgSuspended)
		return
	case types.StatusInactive:
		writeError(w, http.StatusForbidden, msgInactive)
		return
	}

	if !auth.ComparePassword(admin.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	now := time.Now()
	if err := h.adminService.UpdateLastLogin(r.Context(), admin.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}
	admin.LastLoginAt = &now
	admin.PasswordHash = ""

	token, err := auth.IssueSessionToken(admin.ID, h.secret, h.sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeData(w, http.StatusOK, "login successful", LoginData{Token: token, Admin: admin})
}

// VerifyEmail consumes a verification token from the query string.
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "verification token is required")
		return
	}

	admin, err := h.adminService.GetByVerificationToken(r.Context(), auth.HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid or expired verification token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify email")
		return
	}

	if err := h.adminService.MarkVerified(r.Context(), admin.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to verify email")
		return
	}

	writeMessage(w, http.StatusOK, "email verified successfully")
}

// ResendVerification issues a fresh token pair for a not-yet-verified account.
func (h *AccountHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	admin, err := h.adminService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no account found for this email")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resend verification")
		return
	}
	if admin.IsVerified {
		writeError(w, http.StatusBadRequest, "email is already verified")
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resend verification")
		return
	}
	expiry := time.Now().Add(auth.VerificationTokenTTL)
	if err := h.adminService.SetVerificationToken(r.Context(), admin.ID, auth.HashToken(token), expiry); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resend verification")
		return
	}

	h.dispatcher.Dispatch(r.Context(), mailer.VerificationMessage(h.frontendURL, admin.Email, token))

	writeMessage(w, http.StatusOK, "verification email sent")
}

// ForgotPassword issues a reset token for an existing account. The response
// does not reveal whether the email exists.
func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	const accepted = "if an account exists for this email, a reset link has been sent"

	admin, err := h.adminService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusOK, accepted)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}
	expiry := time.Now().Add(auth.ResetTokenTTL)
	if err := h.adminService.SetResetToken(r.Context(), admin.ID, auth.HashToken(token), expiry); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	h.dispatcher.Dispatch(r.Context(), mailer.ResetMessage(h.frontendURL, admin.Email, token))

	writeMessage(w, http.StatusOK, accepted)
}

// ResetPassword consumes a reset token and stores a new password hash.
// Unlike registration this only enforces the length floor.
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" || req.Password == "" || req.ConfirmPassword == "" {
		writeError(w, http.StatusBadRequest, "token, password and confirmPassword are required")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters long")
		return
	}

	admin, err := h.adminService.GetByResetToken(r.Context(), auth.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err := h.adminService.UpdatePassword(r.Context(), admin.ID, passwordHash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	writeMessage(w, http.StatusOK, "password reset successfully")
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token string `json:"token"`
	// Email travels in the reset link alongside the token so the form can
	// prefill it; the token alone identifies the account.
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginData is the payload returned on successful login.
type LoginData struct {
	Token string      `json:"token"`
	Admin types.Admin `json:"admin"`
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
