package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/filex"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserService is what the handlers need from services.UserService.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshAccessToken(ctx context.Context, incoming string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(user models.PublicUser) models.PublicUser
	Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error)
}

// CookieOptions controls the token cookies.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	users   UserService
	cookies CookieOptions
	tempDir string
	logger  logging.Logger
}

func NewHandler(users UserService, cookies CookieOptions, tempDir string, logger logging.Logger) *Handler {
	return &Handler{users: users, cookies: cookies, tempDir: tempDir, logger: logger}
}

type registerRequest struct {
	FullName string `json:"fullname" form:"fullname"`
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Register accepts multipart/form-data with avatar and coverImage files, or a
// JSON body carrying only the text fields.
func (h *Handler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req registerRequest
	in := services.RegisterInput{}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, h.logger, common.WrapError(common.ErrValidation, "invalid form", err))
			return
		}

		var staged []string
		defer func() {
			for _, p := range staged {
				if err := filex.RemoveIfExists(p); err != nil {
					h.logger.Warn(ctx, "failed to remove staged file", "path", p, "error", err)
				}
			}
		}()

		for field, dst := range map[string]*string{"avatar": &in.AvatarPath, "coverImage": &in.CoverImagePath} {
			p, err := h.stage(c, field)
			if err != nil {
				respondError(c, h.logger, err)
				return
			}
			if p != "" {
				staged = append(staged, p)
				*dst = p
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, common.WrapError(common.ErrValidation, "invalid request body", err))
		return
	}

	in.FullName, in.Username, in.Email, in.Password = req.FullName, req.Username, req.Email, req.Password

	user, err := h.users.Register(ctx, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, user, "User registered successfully")
}

// stage saves the uploaded file in field to the temp dir and returns its path,
// or "" when the field is absent.
func (h *Handler) stage(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", common.WrapError(common.ErrValidation, "invalid "+field+" file", err)
	}

	dir, err := filex.EnsureDir(h.tempDir)
	if err != nil {
		return "", common.WrapError(common.ErrInternal, "internal error", err)
	}

	dst := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", common.WrapError(common.ErrInternal, "internal error", err)
	}
	return dst, nil
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, common.WrapError(common.ErrValidation, "invalid request body", err))
		return
	}

	res, err := h.users.Login(c.Request.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setTokenCookies(c, res.AccessToken, res.RefreshToken)
	respond(c, http.StatusOK, res, "User logged in successfully")
}

func (h *Handler) Logout(c *gin.Context) {
	user, _ := currentUser(c)

	if err := h.users.Logout(c.Request.Context(), user.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.clearTokenCookies(c)
	respond(c, http.StatusOK, gin.H{}, "User logged out")
}

// RefreshToken reads the refresh token from its cookie, falling back to the
// JSON body.
func (h *Handler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(refreshCookie)
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}

	pair, err := h.users.RefreshAccessToken(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setTokenCookies(c, pair.AccessToken, pair.RefreshToken)
	respond(c, http.StatusOK, pair, "Access token refreshed")
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, common.WrapError(common.ErrValidation, "invalid request body", err))
		return
	}

	user, _ := currentUser(c)
	if err := h.users.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

func (h *Handler) CurrentUser(c *gin.Context) {
	user, _ := currentUser(c)
	respond(c, http.StatusOK, h.users.CurrentUser(user), "Current user fetched successfully")
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) NotFound(c *gin.Context) {
	respondError(c, h.logger, common.NotFound("Route not found"))
}
