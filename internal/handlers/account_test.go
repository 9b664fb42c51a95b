package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/admingate/apiserver/internal/auth"
	"github.com/admingate/apiserver/internal/mailer"
	"github.com/admingate/apiserver/internal/services"
	"github.com/admingate/apiserver/internal/storage"
	"github.com/admingate/apiserver/internal/store"
	"github.com/admingate/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "test-secret"
	testFrontendURL = "http://localhost:5173"
)

type chanSender struct {
	sent chan mailer.Message
}

func (s *chanSender) Send(msg mailer.Message) error {
	s.sent <- msg
	return nil
}

type testEnv struct {
	repo    *store.MemoryAdminRepository
	service *services.AdminService
	router  *chi.Mux
	sent    chan mailer.Message
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStorage(t, nil)
}

func newTestEnvWithStorage(t *testing.T, avatars storage.ObjectStorage) *testEnv {
	t.Helper()

	repo := store.NewMemoryAdminRepository()
	service := services.NewAdminService(repo)
	sender := &chanSender{sent: make(chan mailer.Message, 16)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := mailer.NewDispatcher(sender, nil, "", logger)

	router := chi.NewRouter()
	router.Route("/api/admin", func(r chi.Router) {
		AccountRouter(r, service, dispatcher, testFrontendURL, testSecret)
		ProfileRouter(r, service, avatars, RequireAuth(testSecret))
	})

	return &testEnv{
		repo:    repo,
		service: service,
		router:  router,
		sent:    sender.sent,
	}
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any, token string) (int, testResponse) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp testResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func (e *testEnv) register(t *testing.T, name, email, password string) testResponse {
	t.Helper()
	status, resp := e.doJSON(t, http.MethodPost, "/api/admin/signup", map[string]string{
		"name":            name,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	}, "")
	require.Equal(t, http.StatusCreated, status, "register failed: %s", resp.Error)
	return resp
}

func (e *testEnv) waitMail(t *testing.T) mailer.Message {
	t.Helper()
	select {
	case msg := <-e.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("expected an email to be dispatched")
		return mailer.Message{}
	}
}

func tokenFromMail(t *testing.T, msg mailer.Message) string {
	t.Helper()
	for _, field := range strings.Fields(msg.TextBody) {
		if !strings.HasPrefix(field, "http") {
			continue
		}
		u, err := url.Parse(field)
		require.NoError(t, err)
		return u.Query().Get("token")
	}
	t.Fatalf("no link in mail body: %q", msg.TextBody)
	return ""
}

func decodeAdmin(t *testing.T, data json.RawMessage) types.Admin {
	t.Helper()
	var admin types.Admin
	require.NoError(t, json.Unmarshal(data, &admin))
	return admin
}

func TestRegisterRequiresAllFields(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.doJSON(t, http.MethodPost, "/api/admin/signup", map[string]string{
		"name":     "A",
		"email":    "a@x.com",
		"password": "Passw0rd!",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.doJSON(t, http.MethodPost, "/api/admin/signup", map[string]string{
		"name":            "A",
		"email":           "a@x.com",
		"password":        "Passw0rd!",
		"confirmPassword": "Different1!",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "passwords do not match", resp.Error)

	_, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.doJSON(t, http.MethodPost, "/api/admin/signup", map[string]string{
		"name":            "A",
		"email":           "a@x.com",
		"password":        "weak",
		"confirmPassword": "weak",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	var reasons []string
	require.NoError(t, json.Unmarshal(resp.Details, &reasons))
	assert.NotEmpty(t, reasons)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "A", "a@x.com", "Passw0rd!")
	env.waitMail(t)

	status, resp := env.doJSON(t, http.MethodPost, "/api/admin/signup", map[string]string{
		"name":            "B",
		"email":           "a@x.com",
		"password":        "Passw0rd!",
		"confirmPassword": "Passw0rd!",
	}, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "email already registered", resp.Error)
}

func TestRegisterCreatesUnverifiedAdmin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.register(t, "A", "a@x.com", "Passw0rd!")
	admin := decodeAdmin(t, resp.Data)
	assert.False(t, admin.IsVerified)
	assert.Equal(t, "admin", admin.Role)
	assert.Equal(t, types.StatusActive, admin.Status)

	// The response never carries the password hash or token fields.
	assert.NotContains(t, string(resp.Data), "password")
	assert.NotContains(t, string(resp.Data), "verification")

	msg := env.waitMail(t)
	assert.Equal(t, "a@x.com", msg.To)
	assert.NotEmpty(t, tokenFromMail(t, msg))
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "nobody@x.com",
		"password": "Passw0rd!",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", resp.Error)
}

func TestLoginRejectsUnverifiedRegardlessOfPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	env.waitMail(t)

	for _, password := range []string{"Passw0rd!", "WrongPass1!"} {
		status, resp := env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
			"email":    "a@x.com",
			"password": password,
		}, "")
		assert.Equal(t, http.StatusForbidden, status)
		assert.Contains(t, resp.Error, "verify")
	}
}

func TestLoginRejectsSuspendedAndInactive(t *testing.T) {
	for _, status := range []types.AdminStatus{types.StatusSuspended, types.StatusInactive} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			resp := env.register(t, "A", "a@x.com", "Passw0rd!")
			admin := decodeAdmin(t, resp.Data)
			token := tokenFromMail(t, env.waitMail(t))

			code, _ := env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+token, nil, "")
			require.Equal(t, http.StatusOK, code)

			env.repo.SetStatus(context.Background(), admin.ID, status)

			code, loginResp := env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
				"email":    "a@x.com",
				"password": "Passw0rd!",
			}, "")
			assert.Equal(t, http.StatusForbidden, code)
			assert.NotContains(t, loginResp.Error, "verify")
			assert.NotEmpty(t, loginResp.Error)
		})
	}
}

func TestVerificationTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	token := tokenFromMail(t, env.waitMail(t))

	code, _ := env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+token, nil, "")
	require.Equal(t, http.StatusOK, code)

	code, resp := env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+token, nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid or expired verification token", resp.Error)
}

func TestVerificationRejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.register(t, "A", "a@x.com", "Passw0rd!")
	admin := decodeAdmin(t, resp.Data)
	token := tokenFromMail(t, env.waitMail(t))

	// Force the stored expiry into the past; the otherwise-correct token
	// must then be rejected.
	require.NoError(t, env.repo.SetVerificationToken(context.Background(), admin.ID, auth.HashToken(token), time.Now().Add(-time.Minute)))

	code, verifyResp := env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+token, nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid or expired verification token", verifyResp.Error)
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	firstToken := tokenFromMail(t, env.waitMail(t))

	code, _ := env.doJSON(t, http.MethodPost, "/api/admin/resend-verification", map[string]string{
		"email": "a@x.com",
	}, "")
	require.Equal(t, http.StatusOK, code)
	secondToken := tokenFromMail(t, env.waitMail(t))
	assert.NotEqual(t, firstToken, secondToken)

	// The replaced token no longer verifies; the fresh one does.
	code, _ = env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+firstToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+secondToken, nil, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestResendVerificationUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.doJSON(t, http.MethodPost, "/api/admin/resend-verification", map[string]string{
		"email": "nobody@x.com",
	}, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResendVerificationAlreadyVerified(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	token := tokenFromMail(t, env.waitMail(t))
	code, _ := env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+token, nil, "")
	require.Equal(t, http.StatusOK, code)

	code, resp := env.doJSON(t, http.MethodPost, "/api/admin/resend-verification", map[string]string{
		"email": "a@x.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email is already verified", resp.Error)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.doJSON(t, http.MethodPost, "/api/admin/forgot-password", map[string]string{
		"email": "nobody@x.com",
	}, "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	select {
	case <-env.sent:
		t.Fatal("no mail should be sent for unknown emails")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	verifyToken := tokenFromMail(t, env.waitMail(t))
	code, _ := env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+verifyToken, nil, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/forgot-password", map[string]string{
		"email": "a@x.com",
	}, "")
	require.Equal(t, http.StatusOK, code)
	resetToken := tokenFromMail(t, env.waitMail(t))

	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/reset-password", map[string]string{
		"token":           resetToken,
		"password":        "newpassword",
		"confirmPassword": "newpassword",
	}, "")
	require.Equal(t, http.StatusOK, code)

	// Old password no longer works, new one does.
	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd!",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "a@x.com",
		"password": "newpassword",
	}, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestResetPasswordAcceptsEmailFromLink(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	verifyToken := tokenFromMail(t, env.waitMail(t))
	code, _ := env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+verifyToken, nil, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/forgot-password", map[string]string{
		"email": "a@x.com",
	}, "")
	require.Equal(t, http.StatusOK, code)
	resetToken := tokenFromMail(t, env.waitMail(t))

	// The reset link carries both token and email; the form posts both back,
	// but only the token selects the account.
	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/reset-password", map[string]string{
		"token":           resetToken,
		"email":           "a@x.com",
		"password":        "newpassword",
		"confirmPassword": "newpassword",
	}, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "a@x.com",
		"password": "newpassword",
	}, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestResetPasswordEnforcesMinLengthOnly(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	env.waitMail(t)
	code, _ := env.doJSON(t, http.MethodPost, "/api/admin/forgot-password", map[string]string{
		"email": "a@x.com",
	}, "")
	require.Equal(t, http.StatusOK, code)
	resetToken := tokenFromMail(t, env.waitMail(t))

	code, resp := env.doJSON(t, http.MethodPost, "/api/admin/reset-password", map[string]string{
		"token":           resetToken,
		"password":        "short1!",
		"confirmPassword": "short1!",
	}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "8 characters")

	// A password the strength validator would reject elsewhere is fine here.
	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/reset-password", map[string]string{
		"token":           resetToken,
		"password":        "lowercaseonly",
		"confirmPassword": "lowercaseonly",
	}, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestResetTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", "Passw0rd!")
	env.waitMail(t)
	code, _ := env.doJSON(t, http.MethodPost, "/api/admin/forgot-password", map[string]string{
		"email": "a@x.com",
	}, "")
	require.Equal(t, http.StatusOK, code)
	resetToken := tokenFromMail(t, env.waitMail(t))

	code, _ = env.doJSON(t, http.MethodPost, "/api/admin/reset-password", map[string]string{
		"token":           resetToken,
		"password":        "newpassword",
		"confirmPassword": "newpassword",
	}, "")
	require.Equal(t, http.StatusOK, code)

	code, resp := env.doJSON(t, http.MethodPost, "/api/admin/reset-password", map[string]string{
		"token":           resetToken,
		"password":        "anotherpass",
		"confirmPassword": "anotherpass",
	}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid or expired reset token", resp.Error)
}

// TestAccountLifecycle walks the register → blocked login → verify → login
// sequence end to end.
func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.register(t, "A", "a@x.com", "Passw0rd!")
	created := decodeAdmin(t, resp.Data)
	assert.False(t, created.IsVerified)

	code, loginResp := env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd!",
	}, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, loginResp.Error, "verify your email")

	token := tokenFromMail(t, env.waitMail(t))
	code, _ = env.doJSON(t, http.MethodGet, "/api/admin/verify?token="+token, nil, "")
	require.Equal(t, http.StatusOK, code)

	admin, err := env.repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, admin.IsVerified)

	code, loginResp = env.doJSON(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd!",
	}, "")
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Token string      `json:"token"`
		Admin types.Admin `json:"admin"`
	}
	require.NoError(t, json.Unmarshal(loginResp.Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.True(t, data.Admin.IsVerified)
	assert.Equal(t, "admin", data.Admin.Role)
	assert.NotNil(t, data.Admin.LastLoginAt)
}
