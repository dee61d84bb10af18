// Package services contains server-side business logic. This file implements
// UserService: registration, login/logout, access/refresh token rotation,
// password change and request authentication.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/media"
	"github.com/dmitrijs2005/accounts/internal/server/metrics"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/store"
)

const (
	msgAllFieldsRequired   = "All fields are required"
	msgUserExists          = "User with this email or username already exists"
	msgAvatarRequired      = "Avatar file is required"
	msgRegisterFailed      = "Something went wrong while registering the user"
	msgIdentifierRequired  = "username or email is required"
	msgUserNotFound        = "User does not exist"
	msgInvalidCredentials  = "Invalid user credentials"
	msgUnauthorizedRequest = "Unauthorized request"
	msgInvalidRefreshToken = "Invalid refresh token"
	msgRefreshTokenUsed    = "Refresh token is expired or used"
	msgPasswordsRequired   = "Old and new password are required"
	msgPasswordTooLong     = "Password must be at most 72 bytes"
	msgInvalidOldPassword  = "Invalid old password"
	msgInvalidAccessToken  = "Invalid access token"
	msgInternal            = "internal error"
)

// UserStore is the subset of store.UserStore used here.
type UserStore interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, nu store.NewUser) (*models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	SetPassword(ctx context.Context, userID, password string) error
	VerifyPassword(user *models.User, password string) bool
}

type TokenIssuer interface {
	IssueAccessToken(user *models.User) (string, error)
	IssueRefreshToken(userID string) (string, error)
	Verify(token string, kind auth.TokenKind) (string, error)
}

type Uploader interface {
	Upload(ctx context.Context, localPath string) (*media.Result, error)
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput carries the registration form. AvatarPath and CoverImagePath
// point at files already staged on local disk.
type RegisterInput struct {
	FullName       string
	Username       string
	Email          string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type UserService struct {
	store   UserStore
	issuer  TokenIssuer
	avatars Uploader
	covers  Uploader
	logger  logging.Logger
}

func NewUserService(st UserStore, issuer TokenIssuer, avatars, covers Uploader, logger logging.Logger) *UserService {
	return &UserService{
		store:   st,
		issuer:  issuer,
		avatars: avatars,
		covers:  covers,
		logger:  logger.With("module", "users"),
	}
}

// Register creates an account. Uniqueness is checked before anything is
// uploaded. A failed cover upload is logged and the user is created without one.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (_ *models.PublicUser, err error) {
	defer func() { metrics.ObserveAuth("register", err) }()

	fullName := strings.TrimSpace(in.FullName)
	username := store.Normalize(in.Username)
	email := store.Normalize(in.Email)
	if fullName == "" || username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.Validation(msgAllFieldsRequired)
	}
	if len(in.Password) > auth.MaxPasswordLen {
		return nil, common.Validation(msgPasswordTooLong)
	}

	_, err = s.store.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return nil, common.Conflict(msgUserExists)
	case !errors.Is(err, common.ErrRecordNotFound):
		return nil, s.internal(ctx, "user lookup failed", err)
	}

	if in.AvatarPath == "" {
		return nil, common.Validation(msgAvatarRequired)
	}

	avatar, err := s.avatars.Upload(ctx, in.AvatarPath)
	metrics.ObserveUpload("avatar", err)
	if err != nil || avatar == nil || avatar.URL == "" {
		s.logger.Warn(ctx, "avatar upload failed", "error", err)
		return nil, common.WrapError(common.ErrUpload, msgAvatarRequired, err)
	}

	var coverURL string
	if in.CoverImagePath != "" {
		cover, err := s.covers.Upload(ctx, in.CoverImagePath)
		metrics.ObserveUpload("cover", err)
		if err != nil {
			s.logger.Warn(ctx, "cover image upload failed, continuing without it", "error", err)
		} else if cover != nil {
			coverURL = cover.URL
		}
	}

	created, err := s.store.Create(ctx, store.NewUser{
		FullName:   fullName,
		Username:   username,
		Email:      email,
		Password:   in.Password,
		Avatar:     avatar.URL,
		CoverImage: coverURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrConflict):
			return nil, common.Conflict(msgUserExists)
		case errors.Is(err, store.ErrPasswordTooLong):
			return nil, common.WrapError(common.ErrValidation, msgPasswordTooLong, err)
		case errors.Is(err, common.ErrValidation):
			return nil, common.WrapError(common.ErrValidation, msgAllFieldsRequired, err)
		}
		s.logger.Error(ctx, "user create failed", "error", err)
		return nil, common.WrapError(common.ErrInternal, msgRegisterFailed, err)
	}

	u, err := s.store.FindByID(ctx, created.ID)
	if err != nil {
		s.logger.Error(ctx, "created user read-back failed", "user_id", created.ID, "error", err)
		return nil, common.WrapError(common.ErrInternal, msgRegisterFailed, err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	pu := u.Sanitize()
	return &pu, nil
}

// Login checks credentials and issues a fresh token pair; the refresh token
// becomes the user's stored one.
func (s *UserService) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	defer func() { metrics.ObserveAuth("login", err) }()

	username := store.Normalize(in.Username)
	email := store.Normalize(in.Email)
	if username == "" && email == "" {
		return nil, common.Validation(msgIdentifierRequired)
	}

	u, err := s.store.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrRecordNotFound) {
			return nil, common.NotFound(msgUserNotFound)
		}
		return nil, s.internal(ctx, "user lookup failed", err)
	}

	if !s.store.VerifyPassword(u, in.Password) {
		return nil, common.Unauthorized(msgInvalidCredentials)
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", u.ID)
	return &LoginResult{User: u.Sanitize(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout forgets the user's refresh token. Logging out twice is not an error.
func (s *UserService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { metrics.ObserveAuth("logout", err) }()

	if err := s.store.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, common.ErrRecordNotFound) {
		return s.internal(ctx, "clear refresh token failed", err)
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// RefreshAccessToken exchanges the user's current refresh token for a new
// pair. A validly signed token that is not the stored one is rejected.
func (s *UserService) RefreshAccessToken(ctx context.Context, incoming string) (_ *TokenPair, err error) {
	defer func() { metrics.ObserveAuth("refresh", err) }()

	if strings.TrimSpace(incoming) == "" {
		return nil, common.Unauthorized(msgUnauthorizedRequest)
	}

	userID, err := s.issuer.Verify(incoming, auth.RefreshToken)
	if err != nil {
		return nil, common.WrapError(common.ErrUnauthorized, msgInvalidRefreshToken, err)
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrRecordNotFound) {
			return nil, common.Unauthorized(msgInvalidRefreshToken)
		}
		return nil, s.internal(ctx, "user lookup failed", err)
	}

	if !u.HasRefreshToken(incoming) {
		s.logger.Warn(ctx, "stale refresh token presented", "user_id", u.ID)
		return nil, common.Unauthorized(msgRefreshTokenUsed)
	}

	return s.issuePair(ctx, u)
}

// ChangePassword replaces the password after checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { metrics.ObserveAuth("change_password", err) }()

	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return common.Validation(msgPasswordsRequired)
	}
	if len(newPassword) > auth.MaxPasswordLen {
		return common.Validation(msgPasswordTooLong)
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrRecordNotFound) {
			return common.NotFound(msgUserNotFound)
		}
		return s.internal(ctx, "user lookup failed", err)
	}

	if !s.store.VerifyPassword(u, oldPassword) {
		return common.Unauthorized(msgInvalidOldPassword)
	}

	if err := s.store.SetPassword(ctx, userID, newPassword); err != nil {
		if errors.Is(err, store.ErrPasswordTooLong) {
			return common.WrapError(common.ErrValidation, msgPasswordTooLong, err)
		}
		return s.internal(ctx, "set password failed", err)
	}
	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// CurrentUser returns the user resolved by Authenticate.
func (s *UserService) CurrentUser(user models.PublicUser) models.PublicUser {
	return user
}

// Authenticate resolves an access token to the user it was issued for.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, common.Unauthorized(msgUnauthorizedRequest)
	}

	userID, err := s.issuer.Verify(accessToken, auth.AccessToken)
	if err != nil {
		return nil, common.WrapError(common.ErrUnauthorized, msgInvalidAccessToken, err)
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrRecordNotFound) {
			return nil, common.Unauthorized(msgInvalidAccessToken)
		}
		return nil, s.internal(ctx, "user lookup failed", err)
	}

	pu := u.Sanitize()
	return &pu, nil
}

// --- helpers below ---

func (s *UserService) issuePair(ctx context.Context, u *models.User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(u)
	if err != nil {
		return nil, s.internal(ctx, "issue access token failed", err)
	}
	refresh, err := s.issuer.IssueRefreshToken(u.ID)
	if err != nil {
		return nil, s.internal(ctx, "issue refresh token failed", err)
	}
	if err := s.store.SetRefreshToken(ctx, u.ID, refresh); err != nil {
		return nil, s.internal(ctx, "store refresh token failed", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *UserService) internal(ctx context.Context, msg string, err error) error {
	s.logger.Error(ctx, msg, "error", err)
	return common.WrapError(common.ErrInternal, msgInternal, err)
}
