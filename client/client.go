// Package client is a typed HTTP client for the admingate API. It plays the
// role of the browser frontend: it keeps the session token and profile as
// local auth state after login, and surfaces server error messages verbatim.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/admingate/apiserver/types"
)

const defaultTimeout = 15 * time.Second

// APIError carries the server's error message and status code.
type APIError struct {
	StatusCode int
	Message    string

	// SuggestResendVerification is set when the server message indicates an
	// unverified account, so callers can offer a resend action.
	SuggestResendVerification bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Client calls the admingate REST API and holds the resulting auth state.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	token   string
	profile *types.Admin
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Token returns the session token held after a successful login.
func (c *Client) Token() string {
	return c.token
}

// Profile returns the admin profile held after a successful login.
func (c *Client) Profile() *types.Admin {
	return c.profile
}

// Register creates a new admin account.
func (c *Client) Register(ctx context.Context, name, email, password, confirmPassword string) (types.Admin, error) {
	body := map[string]string{
		"name":            name,
		"email":           email,
		"password":        password,
		"confirmPassword": confirmPassword,
	}
	var admin types.Admin
	if err := c.do(ctx, http.MethodPost, "/api/admin/signup", body, &admin); err != nil {
		return types.Admin{}, err
	}
	return admin, nil
}

type loginData struct {
	Token string      `json:"token"`
	Admin types.Admin `json:"admin"`
}

// Login authenticates and, on success, stores the returned session token and
// profile as the client's auth state. On failure the returned *APIError hints
// whether a resend-verification action should be offered.
func (c *Client) Login(ctx context.Context, email, password string) (types.Admin, error) {
	body := map[string]string{"email": email, "password": password}
	var data loginData
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", body, &data); err != nil {
		return types.Admin{}, err
	}
	c.token = data.Token
	c.profile = &data.Admin
	return data.Admin, nil
}

// Logout clears the held auth state.
func (c *Client) Logout() {
	c.token = ""
	c.profile = nil
}

// VerifyEmail consumes a verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	path := "/api/admin/verify?" + url.Values{"token": {token}}.Encode()
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// ResendVerification requests a fresh verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/resend-verification", map[string]string{"email": email}, nil)
}

// GetProfile fetches the authenticated admin's record.
func (c *Client) GetProfile(ctx context.Context) (types.Admin, error) {
	var admin types.Admin
	if err := c.do(ctx, http.MethodGet, "/api/admin/profile", nil, &admin); err != nil {
		return types.Admin{}, err
	}
	return admin, nil
}

// UpdateProfile mutates the caller-editable fields. Nil pointers leave the
// corresponding field unchanged.
func (c *Client) UpdateProfile(ctx context.Context, name, notes *string) (types.Admin, error) {
	body := map[string]*string{"name": name, "notes": notes}
	var admin types.Admin
	if err := c.do(ctx, http.MethodPut, "/api/admin/profile", body, &admin); err != nil {
		return types.Admin{}, err
	}
	return admin, nil
}

// ChangePassword replaces the password after re-authentication.
func (c *Client) ChangePassword(ctx context.Context, current, newPassword, confirm string) error {
	body := map[string]string{
		"currentPassword": current,
		"newPassword":     newPassword,
		"confirmPassword": confirm,
	}
	return c.do(ctx, http.MethodPut, "/api/admin/change-password", body, nil)
}

// ForgotPassword requests a reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword consumes a reset token and sets a new password.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) error {
	body := map[string]string{
		"token":           token,
		"password":        password,
		"confirmPassword": confirm,
	}
	return c.do(ctx, http.MethodPost, "/api/admin/reset-password", body, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		message := env.Error
		if message == "" {
			message = env.Message
		}
		return &APIError{
			StatusCode:                resp.StatusCode,
			Message:                   message,
			SuggestResendVerification: strings.Contains(message, "verify"),
		}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
