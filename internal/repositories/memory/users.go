package memory

import (
	"context"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/internal/repositories"
)

type userRepo struct{ s *state }

func (r *userRepo) CreateUser(_ context.Context, user *models.User, hashedPassword string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.users {
		if rec.user.Username == user.Username {
			return 0, duplicate("users_username_key")
		}
		if user.Email != nil && rec.user.Email != nil && *user.Email == *rec.user.Email {
			return 0, duplicate("users_email_key")
		}
	}
	if user.Role == "" {
		user.Role = models.RoleOperator
	}
	now := r.s.now()
	user.ID = r.s.id("users")
	user.IsActive = true
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = &userRecord{user: *user, hash: hashedPassword}
	return user.ID, nil
}

func (r *userRepo) FindUserByUsername(_ context.Context, username string) (*models.User, string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rec := range r.s.users {
		if rec.user.Username == username {
			u := rec.user
			return &u, rec.hash, nil
		}
	}
	return nil, "", repositories.ErrNotFound
}

func (r *userRepo) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	u := rec.user
	return &u, nil
}

func (r *userRepo) CountUsers(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}
