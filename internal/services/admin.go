package services

import (
	"context"
	"time"

	"github.com/admingate/apiserver/types"
)

// AdminRepository defines persistence operations for admin accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin types.Admin) (types.Admin, error)
	GetByID(ctx context.Context, id int) (types.Admin, error)
	GetByEmail(ctx context.Context, email string) (types.Admin, error)
	GetCredentialsByEmail(ctx context.Context, email string) (types.Admin, error)
	GetCredentialsByID(ctx context.Context, id int) (types.Admin, error)
	GetByVerificationToken(ctx context.Context, tokenHash string) (types.Admin, error)
	GetByResetToken(ctx context.Context, tokenHash string) (types.Admin, error)
	SetVerificationToken(ctx context.Context, id int, tokenHash string, expiry time.Time) error
	MarkVerified(ctx context.Context, id int) error
	SetResetToken(ctx context.Context, id int, tokenHash string, expiry time.Time) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetStatus(ctx context.Context, id int, status types.AdminStatus) error
	UpdateProfile(ctx context.Context, id int, name, notes string) error
	SetAvatarKey(ctx context.Context, id int, key string) error
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
}

// AdminService encapsulates admin account use-cases.
type AdminService struct {
	repo AdminRepository
}

func NewAdminService(repo AdminRepository) *AdminService {
	return &AdminService{repo: repo}
}

func (s *AdminService) Create(ctx context.Context, admin types.Admin) (types.Admin, error) {
	return s.repo.Create(ctx, admin)
}

func (s *AdminService) GetByID(ctx context.Context, id int) (types.Admin, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AdminService) GetByEmail(ctx context.Context, email string) (types.Admin, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *AdminService) GetCredentialsByEmail(ctx context.Context, email string) (types.Admin, error) {
	return s.repo.GetCredentialsByEmail(ctx, email)
}

func (s *AdminService) GetCredentialsByID(ctx context.Context, id int) (types.Admin, error) {
	return s.repo.GetCredentialsByID(ctx, id)
}

func (s *AdminService) GetByVerificationToken(ctx context.Context, tokenHash string) (types.Admin, error) {
	return s.repo.GetByVerificationToken(ctx, tokenHash)
}

func (s *AdminService) GetByResetToken(ctx context.Context, tokenHash string) (types.Admin, error) {
	return s.repo.GetByResetToken(ctx, tokenHash)
}

func (s *AdminService) SetVerificationToken(ctx context.Context, id int, tokenHash string, expiry time.Time) error {
	return s.repo.SetVerificationToken(ctx, id, tokenHash, expiry)
}

func (s *AdminService) MarkVerified(ctx context.Context, id int) error {
	return s.repo.MarkVerified(ctx, id)
}

func (s *AdminService) SetResetToken(ctx context.Context, id int, tokenHash string, expiry time.Time) error {
	return s.repo.SetResetToken(ctx, id, tokenHash, expiry)
}

func (s *AdminService) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash)
}

func (s *AdminService) SetStatus(ctx context.Context, id int, status types.AdminStatus) error {
	return s.repo.SetStatus(ctx, id, status)
}

func (s *AdminService) UpdateProfile(ctx context.Context, id int, name, notes string) error {
	return s.repo.UpdateProfile(ctx, id, name, notes)
}

func (s *AdminService) SetAvatarKey(ctx context.Context, id int, key string) error {
	return s.repo.SetAvatarKey(ctx, id, key)
}

func (s *AdminService) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	return s.repo.UpdateLastLogin(ctx, id, at)
}
