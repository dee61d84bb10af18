// Package store is the user record store: the repository plus explicit
// password hashing, input normalization and uniqueness checks.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is a validation error for passwords the hasher cannot take.
var ErrPasswordTooLong = fmt.Errorf("%w: password too long", common.ErrValidation)

// Hasher turns plaintext passwords into stored hashes and checks them.
// Compare returns a non-nil error on mismatch.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// NewUser is the input to Create. Password is plaintext.
type NewUser struct {
	FullName   string
	Username   string
	Email      string
	Password   string
	Avatar     string
	CoverImage string
}

type UserStore struct {
	repo   users.Repository
	hasher Hasher
}

func NewUserStore(repo users.Repository, hasher Hasher) *UserStore {
	return &UserStore{repo: repo, hasher: hasher}
}

// Normalize trims and lower-cases an identifier (username or email).
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *UserStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return s.repo.FindByUsernameOrEmail(ctx, Normalize(username), Normalize(email))
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Create validates nu, rejects taken usernames or emails and stores the user
// with a hashed password.
func (s *UserStore) Create(ctx context.Context, nu NewUser) (*models.User, error) {
	u := &models.User{
		FullName:   strings.TrimSpace(nu.FullName),
		Username:   Normalize(nu.Username),
		Email:      Normalize(nu.Email),
		Avatar:     nu.Avatar,
		CoverImage: nu.CoverImage,
	}
	if u.FullName == "" || u.Username == "" || u.Email == "" || strings.TrimSpace(nu.Password) == "" {
		return nil, common.ErrValidation
	}
	if u.Avatar == "" {
		return nil, fmt.Errorf("%w: avatar is required", common.ErrValidation)
	}

	_, err := s.repo.FindByUsernameOrEmail(ctx, u.Username, u.Email)
	switch {
	case err == nil:
		return nil, common.ErrConflict
	case !errors.Is(err, common.ErrRecordNotFound):
		return nil, err
	}

	hash, err := s.hash(nu.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	return s.repo.Create(ctx, u)
}

// SetRefreshToken stores token as-is.
func (s *UserStore) SetRefreshToken(ctx context.Context, userID, token string) error {
	return s.repo.UpdateRefreshToken(ctx, userID, &token)
}

func (s *UserStore) ClearRefreshToken(ctx context.Context, userID string) error {
	return s.repo.UpdateRefreshToken(ctx, userID, nil)
}

// SetPassword hashes password before persisting it.
func (s *UserStore) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, hash)
}

func (s *UserStore) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %w", ErrPasswordTooLong, err)
	}
	return hash, err
}

// VerifyPassword reports whether password matches the user's stored hash.
func (s *UserStore) VerifyPassword(user *models.User, password string) bool {
	return s.hasher.Compare(user.PasswordHash, password) == nil
}
