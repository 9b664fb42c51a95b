package store

import (
	"context"
	"testing"
	"time"

	"github.com/admingate/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(email string) types.Admin {
	return types.Admin{
		Name:         "Test Admin",
		Email:        email,
		PasswordHash: "hash",
		Role:         "admin",
		Permissions:  []string{},
		Status:       types.StatusActive,
	}
}

func TestMemoryCreateRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository()

	_, err := repo.Create(ctx, newTestAdmin("a@x.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestAdmin("A@X.COM"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryDefaultReadsOmitPasswordHash(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository()

	created, err := repo.Create(ctx, newTestAdmin("a@x.com"))
	require.NoError(t, err)
	assert.Empty(t, created.PasswordHash)

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, byEmail.PasswordHash)

	creds, err := repo.GetCredentialsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", creds.PasswordHash)
}

func TestMemoryVerificationTokenLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository()

	created, err := repo.Create(ctx, newTestAdmin("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, repo.SetVerificationToken(ctx, created.ID, "tokenhash", time.Now().Add(time.Hour)))

	found, err := repo.GetByVerificationToken(ctx, "tokenhash")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetByVerificationToken(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryVerificationTokenExpiry(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository()

	created, err := repo.Create(ctx, newTestAdmin("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, repo.SetVerificationToken(ctx, created.ID, "tokenhash", time.Now().Add(-time.Minute)))

	_, err = repo.GetByVerificationToken(ctx, "tokenhash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryMarkVerifiedClearsToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository()

	created, err := repo.Create(ctx, newTestAdmin("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, repo.SetVerificationToken(ctx, created.ID, "tokenhash", time.Now().Add(time.Hour)))

	require.NoError(t, repo.MarkVerified(ctx, created.ID))

	admin, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, admin.IsVerified)
	assert.Nil(t, admin.VerificationTokenHash)
	assert.Nil(t, admin.VerificationExpiry)

	_, err = repo.GetByVerificationToken(ctx, "tokenhash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdatePasswordClearsResetToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository()

	created, err := repo.Create(ctx, newTestAdmin("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, repo.SetResetToken(ctx, created.ID, "resethash", time.Now().Add(time.Hour)))

	found, err := repo.GetByResetToken(ctx, "resethash")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	require.NoError(t, repo.UpdatePassword(ctx, created.ID, "newhash"))

	_, err = repo.GetByResetToken(ctx, "resethash")
	assert.ErrorIs(t, err, ErrNotFound)

	creds, err := repo.GetCredentialsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "newhash", creds.PasswordHash)
}

func TestMemoryUpdateProfile(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdminRepository()

	created, err := repo.Create(ctx, newTestAdmin("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateProfile(ctx, created.ID, "New Name", "some notes"))

	admin, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", admin.Name)
	assert.Equal(t, "some notes", admin.Notes)

	assert.ErrorIs(t, repo.UpdateProfile(ctx, 999, "x", "y"), ErrNotFound)
}
