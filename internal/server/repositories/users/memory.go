package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. It backs the memory:// DSN
// used for local runs and tests; nothing survives a restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.User
	now   func() time.Time
	newID func() string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*models.User),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, common.ErrConflict
		}
	}

	now := r.now()
	user.ID = r.newID()
	user.CreatedAt, user.UpdatedAt = now, now
	r.byID[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return clone(u), nil
		}
	}
	return nil, common.ErrRecordNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) UpdateRefreshToken(_ context.Context, id string, token *string) error {
	return r.update(id, func(u *models.User) {
		if token == nil {
			u.RefreshToken = nil
			return
		}
		t := *token
		u.RefreshToken = &t
	})
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (r *MemoryRepository) update(id string, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrRecordNotFound
	}
	fn(u)
	u.UpdatedAt = r.now()
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}
