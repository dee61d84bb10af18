package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates access tokens from refresh tokens. A token of one kind
// never verifies as the other, even if the secrets were configured equal.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims is the JWT payload: the registered claims plus the owning user and
// the token kind. ID (jti) is random so two tokens minted in the same second
// still differ.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string    `json:"uid"`
	Kind     TokenKind `json:"typ"`
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
}

func GenerateToken(userID string, kind TokenKind, secretKey []byte, validityDuration time.Duration) (string, error) {
	return signClaims(Claims{UserID: userID, Kind: kind}, secretKey, validityDuration)
}

func signClaims(claims Claims, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// GetUserIDFromToken validates signature, expiry and kind and returns the user
// id. Every failure wraps common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, kind TokenKind, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Kind != kind || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}

// Issuer mints and verifies both token kinds with their own secrets and lifetimes.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenValidityDuration,
		refreshTTL:    cfg.RefreshTokenValidityDuration,
	}
}

// IssueAccessToken embeds the username and email next to the user id.
func (i *Issuer) IssueAccessToken(user *models.User) (string, error) {
	claims := Claims{UserID: user.ID, Kind: AccessToken, Username: user.Username, Email: user.Email}
	return signClaims(claims, i.accessSecret, i.accessTTL)
}

func (i *Issuer) IssueRefreshToken(userID string) (string, error) {
	return GenerateToken(userID, RefreshToken, i.refreshSecret, i.refreshTTL)
}

// Verify returns the user id encoded in token, or an error wrapping
// common.ErrInvalidToken.
func (i *Issuer) Verify(token string, kind TokenKind) (string, error) {
	switch kind {
	case AccessToken:
		return GetUserIDFromToken(token, kind, i.accessSecret)
	case RefreshToken:
		return GetUserIDFromToken(token, kind, i.refreshSecret)
	default:
		return "", fmt.Errorf("%w: unknown token kind %q", common.ErrInvalidToken, kind)
	}
}

// RefreshTTL is used by the transport to size the refresh cookie.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// AccessTTL is used by the transport to size the access cookie.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }
