package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/admingate/apiserver/types"
)

// MemoryAdminRepository is an in-memory implementation of the admin
// repository used in tests and local development without Postgres.
type MemoryAdminRepository struct {
	mu     sync.Mutex
	nextID int
	admins map[int]types.Admin
}

func NewMemoryAdminRepository() *MemoryAdminRepository {
	return &MemoryAdminRepository{
		nextID: 1,
		admins: make(map[int]types.Admin),
	}
}

func (r *MemoryAdminRepository) Create(_ context.Context, admin types.Admin) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.admins {
		if strings.EqualFold(existing.Email, admin.Email) {
			return types.Admin{}, ErrConflict
		}
	}

	now := time.Now()
	admin.ID = r.nextID
	admin.CreatedAt = now
	admin.UpdatedAt = now
	r.nextID++
	r.admins[admin.ID] = admin
	return sanitize(admin), nil
}

func (r *MemoryAdminRepository) GetByID(_ context.Context, id int) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.admins[id]
	if !ok {
		return types.Admin{}, ErrNotFound
	}
	return sanitize(admin), nil
}

func (r *MemoryAdminRepository) GetByEmail(_ context.Context, email string) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.findByEmail(email)
	if !ok {
		return types.Admin{}, ErrNotFound
	}
	return sanitize(admin), nil
}

func (r *MemoryAdminRepository) GetCredentialsByEmail(_ context.Context, email string) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.findByEmail(email)
	if !ok {
		return types.Admin{}, ErrNotFound
	}
	return admin, nil
}

func (r *MemoryAdminRepository) GetCredentialsByID(_ context.Context, id int) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.admins[id]
	if !ok {
		return types.Admin{}, ErrNotFound
	}
	return admin, nil
}

func (r *MemoryAdminRepository) GetByVerificationToken(_ context.Context, tokenHash string) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, admin := range r.admins {
		if admin.VerificationTokenHash != nil && *admin.VerificationTokenHash == tokenHash &&
			admin.VerificationExpiry != nil && admin.VerificationExpiry.After(now) {
			return sanitize(admin), nil
		}
	}
	return types.Admin{}, ErrNotFound
}

func (r *MemoryAdminRepository) GetByResetToken(_ context.Context, tokenHash string) (types.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, admin := range r.admins {
		if admin.ResetTokenHash != nil && *admin.ResetTokenHash == tokenHash &&
			admin.ResetExpiry != nil && admin.ResetExpiry.After(now) {
			return sanitize(admin), nil
		}
	}
	return types.Admin{}, ErrNotFound
}

func (r *MemoryAdminRepository) SetVerificationToken(_ context.Context, id int, tokenHash string, expiry time.Time) error {
	return r.update(id, func(admin *types.Admin) {
		admin.VerificationTokenHash = &tokenHash
		admin.VerificationExpiry = &expiry
	})
}

func (r *MemoryAdminRepository) MarkVerified(_ context.Context, id int) error {
	return r.update(id, func(admin *types.Admin) {
		admin.IsVerified = true
		admin.VerificationTokenHash = nil
		admin.VerificationExpiry = nil
	})
}

func (r *MemoryAdminRepository) SetResetToken(_ context.Context, id int, tokenHash string, expiry time.Time) error {
	return r.update(id, func(admin *types.Admin) {
		admin.ResetTokenHash = &tokenHash
		admin.ResetExpiry = &expiry
	})
}

func (r *MemoryAdminRepository) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	return r.update(id, func(admin *types.Admin) {
		admin.PasswordHash = passwordHash
		admin.ResetTokenHash = nil
		admin.ResetExpiry = nil
	})
}

func (r *MemoryAdminRepository) UpdateProfile(_ context.Context, id int, name, notes string) error {
	return r.update(id, func(admin *types.Admin) {
		admin.Name = name
		admin.Notes = notes
	})
}

func (r *MemoryAdminRepository) SetStatus(_ context.Context, id int, status types.AdminStatus) error {
	return r.update(id, func(admin *types.Admin) {
		admin.Status = status
	})
}

func (r *MemoryAdminRepository) SetAvatarKey(_ context.Context, id int, key string) error {
	return r.update(id, func(admin *types.Admin) {
		admin.AvatarKey = key
	})
}

func (r *MemoryAdminRepository) UpdateLastLogin(_ context.Context, id int, at time.Time) error {
	return r.update(id, func(admin *types.Admin) {
		admin.LastLoginAt = &at
	})
}

func (r *MemoryAdminRepository) findByEmail(email string) (types.Admin, bool) {
	for _, admin := range r.admins {
		if strings.EqualFold(admin.Email, email) {
			return admin, true
		}
	}
	return types.Admin{}, false
}

func (r *MemoryAdminRepository) update(id int, mutate func(*types.Admin)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.admins[id]
	if !ok {
		return ErrNotFound
	}
	mutate(&admin)
	admin.UpdatedAt = time.Now()
	r.admins[id] = admin
	return nil
}

// sanitize strips the password hash the same way default SQL reads do.
func sanitize(admin types.Admin) types.Admin {
	admin.PasswordHash = ""
	return admin
}
