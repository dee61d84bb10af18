package models

import "time"

// User is the persisted account record. PasswordHash and RefreshToken never
// leave the service; use Sanitize for anything returned to callers.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Avatar       string
	CoverImage   string
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized projection of User.
type PublicUser struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullname"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Sanitize drops the password hash and refresh token.
func (u *User) Sanitize() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// HasRefreshToken reports whether token equals the stored refresh token.
func (u *User) HasRefreshToken(token string) bool {
	return u.RefreshToken != nil && *u.RefreshToken == token
}
