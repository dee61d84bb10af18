package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/media"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/dmitrijs2005/accounts/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type fakeUploader struct {
	base  string
	err   error
	calls []string
}

func (f *fakeUploader) Upload(_ context.Context, localPath string) (*media.Result, error) {
	f.calls = append(f.calls, localPath)
	if f.err != nil {
		return nil, f.err
	}
	return &media.Result{URL: f.base + "/" + localPath, Key: localPath}, nil
}

type fixture struct {
	svc     *UserService
	repo    *users.MemoryRepository
	issuer  *auth.Issuer
	avatars *fakeUploader
	covers  *fakeUploader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := users.NewMemoryRepository()
	st := store.NewUserStore(repo, auth.NewBcryptHasher(bcrypt.MinCost))
	issuer := auth.NewIssuer(&config.Config{
		AccessTokenSecret:            "access",
		RefreshTokenSecret:           "refresh",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	})
	f := &fixture{
		repo:    repo,
		issuer:  issuer,
		avatars: &fakeUploader{base: "http://cdn/avatars"},
		covers:  &fakeUploader{base: "http://cdn/covers"},
	}
	f.svc = NewUserService(st, issuer, f.avatars, f.covers, logging.Nop{})
	return f
}

func aliceInput() RegisterInput {
	return RegisterInput{
		FullName:       "Alice Liddell",
		Username:       "Alice",
		Email:          "alice@example.com",
		Password:       "wonderland",
		AvatarPath:     "a.png",
		CoverImagePath: "c.png",
	}
}

func (f *fixture) registerAlice(t *testing.T) *models.PublicUser {
	t.Helper()
	u, err := f.svc.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	return u
}

func (f *fixture) stored(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func requireKind(t *testing.T, err, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	e, ok := common.AsError(err)
	require.True(t, ok, "expected *common.Error, got %T", err)
	assert.Equal(t, msg, e.Message)
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	u := f.registerAlice(t)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice Liddell", u.FullName)
	assert.Equal(t, "http://cdn/avatars/a.png", u.Avatar)
	assert.Equal(t, "http://cdn/covers/c.png", u.CoverImage)

	stored := f.stored(t, u.ID)
	assert.NotEqual(t, "wonderland", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("wonderland")))
	assert.Nil(t, stored.RefreshToken)
}

func TestRegister_BlankFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"fullname", func(in *RegisterInput) { in.FullName = "   " }},
		{"username", func(in *RegisterInput) { in.Username = "" }},
		{"email", func(in *RegisterInput) { in.Email = "\t" }},
		{"password", func(in *RegisterInput) { in.Password = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := aliceInput()
			tt.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			requireKind(t, err, common.ErrValidation, msgAllFieldsRequired)
			assert.Empty(t, f.avatars.calls)

			_, err = f.repo.FindByUsernameOrEmail(context.Background(), "alice", "alice@example.com")
			assert.ErrorIs(t, err, common.ErrRecordNotFound)
		})
	}
}

func TestRegister_PasswordTooLong(t *testing.T) {
	f := newFixture(t)
	in := aliceInput()
	in.Password = strings.Repeat("x", auth.MaxPasswordLen+1)

	_, err := f.svc.Register(context.Background(), in)
	requireKind(t, err, common.ErrValidation, msgPasswordTooLong)
	assert.Empty(t, f.avatars.calls)
	assert.Empty(t, f.covers.calls)

	_, err = f.repo.FindByUsernameOrEmail(context.Background(), "alice", "alice@example.com")
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
}

func TestRegister_PasswordAtLimit(t *testing.T) {
	f := newFixture(t)
	in := aliceInput()
	in.Password = strings.Repeat("x", auth.MaxPasswordLen)

	u, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.stored(t, u.ID).PasswordHash), []byte(in.Password)))
}

func TestRegister_Duplicate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"same username", func(in *RegisterInput) { in.Email = "other@example.com" }},
		{"same email", func(in *RegisterInput) { in.Username = "bob" }},
		{"case and spaces", func(in *RegisterInput) { in.Username = " ALICE "; in.Email = "x@example.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			first := f.registerAlice(t)
			f.avatars.calls = nil

			in := aliceInput()
			tt.mutate(&in)
			_, err := f.svc.Register(context.Background(), in)
			requireKind(t, err, common.ErrConflict, msgUserExists)
			assert.Empty(t, f.avatars.calls, "no upload before the uniqueness check")

			u, err := f.repo.FindByUsernameOrEmail(context.Background(), "alice", "")
			require.NoError(t, err)
			assert.Equal(t, first.ID, u.ID)
		})
	}
}

func TestRegister_MissingAvatar(t *testing.T) {
	f := newFixture(t)
	in := aliceInput()
	in.AvatarPath = ""

	_, err := f.svc.Register(context.Background(), in)
	requireKind(t, err, common.ErrValidation, msgAvatarRequired)
	assert.Empty(t, f.covers.calls)
}

func TestRegister_AvatarUploadFails(t *testing.T) {
	f := newFixture(t)
	f.avatars.err = errors.New("s3 down")

	_, err := f.svc.Register(context.Background(), aliceInput())
	requireKind(t, err, common.ErrUpload, msgAvatarRequired)

	_, err = f.repo.FindByUsernameOrEmail(context.Background(), "alice", "")
	assert.ErrorIs(t, err, common.ErrRecordNotFound)
}

func TestRegister_CoverUploadFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.covers.err = errors.New("s3 down")

	u, err := f.svc.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.Equal(t, "", u.CoverImage)
	assert.NotEmpty(t, u.Avatar)
}

func TestRegister_NoCoverImage(t *testing.T) {
	f := newFixture(t)
	in := aliceInput()
	in.CoverImagePath = ""

	u, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "", u.CoverImage)
	assert.Empty(t, f.covers.calls)
}

type readBackMissStore struct {
	UserStore
}

func (s readBackMissStore) FindByID(context.Context, string) (*models.User, error) {
	return nil, common.ErrRecordNotFound
}

func TestRegister_ReadBackMiss(t *testing.T) {
	f := newFixture(t)
	f.svc.store = readBackMissStore{UserStore: f.svc.store}

	_, err := f.svc.Register(context.Background(), aliceInput())
	requireKind(t, err, common.ErrInternal, msgRegisterFailed)
}

type lookupErrStore struct {
	UserStore
	err error
}

func (s lookupErrStore) FindByUsernameOrEmail(context.Context, string, string) (*models.User, error) {
	return nil, s.err
}

func TestRegister_LookupError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("db down")
	f.svc.store = lookupErrStore{UserStore: f.svc.store, err: boom}

	_, err := f.svc.Register(context.Background(), aliceInput())
	assert.ErrorIs(t, err, common.ErrInternal)
	assert.ErrorIs(t, err, boom)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)

	res, err := f.svc.Login(context.Background(), LoginInput{Username: "ALICE", Password: "wonderland"})
	require.NoError(t, err)

	assert.Equal(t, reg.ID, res.User.ID)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	stored := f.stored(t, reg.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, res.RefreshToken, *stored.RefreshToken)

	id, err := f.issuer.Verify(res.AccessToken, auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, id)
}

func TestLogin_ByEmail(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)

	res, err := f.svc.Login(context.Background(), LoginInput{Email: " Alice@Example.com", Password: "wonderland"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, res.User.ID)
}

func TestLogin_MissingIdentifier(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginInput{Password: "x"})
	requireKind(t, err, common.ErrValidation, msgIdentifierRequired)
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)

	res, err := f.svc.Login(context.Background(), LoginInput{Username: "bob", Password: "wonderland"})
	requireKind(t, err, common.ErrNotFound, msgUserNotFound)
	assert.Nil(t, res)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)

	res, err := f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "nope"})
	requireKind(t, err, common.ErrUnauthorized, msgInvalidCredentials)
	assert.Nil(t, res)
	assert.Nil(t, f.stored(t, reg.ID).RefreshToken, "no token issued on failed login")
}

// --- RefreshAccessToken ---

func login(t *testing.T, f *fixture) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "wonderland"})
	require.NoError(t, err)
	return res
}

func TestRefresh_Rotates(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)
	first := login(t, f)

	pair, err := f.svc.RefreshAccessToken(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, *f.stored(t, reg.ID).RefreshToken)

	// the rotated-out token is no longer accepted
	_, err = f.svc.RefreshAccessToken(context.Background(), first.RefreshToken)
	requireKind(t, err, common.ErrUnauthorized, msgRefreshTokenUsed)

	_, err = f.svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RefreshAccessToken(context.Background(), "  ")
	requireKind(t, err, common.ErrUnauthorized, msgUnauthorizedRequest)
}

func TestRefresh_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RefreshAccessToken(context.Background(), "not.a.jwt")
	requireKind(t, err, common.ErrUnauthorized, msgInvalidRefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	res := login(t, f)

	_, err := f.svc.RefreshAccessToken(context.Background(), res.AccessToken)
	requireKind(t, err, common.ErrUnauthorized, msgInvalidRefreshToken)
}

func TestRefresh_ValidButNotStored(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)
	login(t, f)

	forged, err := f.issuer.IssueRefreshToken(reg.ID)
	require.NoError(t, err)

	_, err = f.svc.RefreshAccessToken(context.Background(), forged)
	requireKind(t, err, common.ErrUnauthorized, msgRefreshTokenUsed)
}

func TestRefresh_UnknownUser(t *testing.T) {
	f := newFixture(t)
	tok, err := f.issuer.IssueRefreshToken("ghost")
	require.NoError(t, err)

	_, err = f.svc.RefreshAccessToken(context.Background(), tok)
	requireKind(t, err, common.ErrUnauthorized, msgInvalidRefreshToken)
}

// --- Logout ---

func TestLogout_ClearsRefreshToken(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)
	res := login(t, f)

	require.NoError(t, f.svc.Logout(context.Background(), reg.ID))
	assert.Nil(t, f.stored(t, reg.ID).RefreshToken)

	_, err := f.svc.RefreshAccessToken(context.Background(), res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	require.NoError(t, f.svc.Logout(context.Background(), reg.ID), "logout is idempotent")
	require.NoError(t, f.svc.Logout(context.Background(), "ghost"))
}

// --- ChangePassword ---

func TestChangePassword_WrongOld(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)
	before := f.stored(t, reg.ID).PasswordHash

	err := f.svc.ChangePassword(context.Background(), reg.ID, "nope", "newpass")
	requireKind(t, err, common.ErrUnauthorized, msgInvalidOldPassword)
	assert.Equal(t, before, f.stored(t, reg.ID).PasswordHash)
}

func TestChangePassword_Success(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)

	require.NoError(t, f.svc.ChangePassword(context.Background(), reg.ID, "wonderland", "looking-glass"))

	_, err := f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "wonderland"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "looking-glass"})
	assert.NoError(t, err)
	assert.NotEqual(t, "looking-glass", f.stored(t, reg.ID).PasswordHash)
}

func TestChangePassword_Blank(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)

	err := f.svc.ChangePassword(context.Background(), reg.ID, "wonderland", " ")
	requireKind(t, err, common.ErrValidation, msgPasswordsRequired)
}

func TestChangePassword_TooLong(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)
	before := f.stored(t, reg.ID).PasswordHash

	err := f.svc.ChangePassword(context.Background(), reg.ID, "wonderland", strings.Repeat("y", 80))
	requireKind(t, err, common.ErrValidation, msgPasswordTooLong)
	assert.Equal(t, before, f.stored(t, reg.ID).PasswordHash)
}

// --- Authenticate / CurrentUser ---

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	reg := f.registerAlice(t)
	res := login(t, f)

	u, err := f.svc.Authenticate(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)
	assert.Equal(t, *u, f.svc.CurrentUser(*u))

	raw, err := json.Marshal(f.svc.CurrentUser(*u))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.NotContains(t, m, "password")
	assert.NotContains(t, m, "passwordHash")
	assert.NotContains(t, m, "refreshToken")
	assert.Equal(t, reg.ID, m["_id"])
}

func TestAuthenticate_Failures(t *testing.T) {
	f := newFixture(t)
	f.registerAlice(t)
	res := login(t, f)

	_, err := f.svc.Authenticate(context.Background(), "")
	requireKind(t, err, common.ErrUnauthorized, msgUnauthorizedRequest)

	_, err = f.svc.Authenticate(context.Background(), res.RefreshToken)
	requireKind(t, err, common.ErrUnauthorized, msgInvalidAccessToken)

	ghost, err := f.issuer.IssueAccessToken(&models.User{ID: "ghost"})
	require.NoError(t, err)
	_, err = f.svc.Authenticate(context.Background(), ghost)
	requireKind(t, err, common.ErrUnauthorized, msgInvalidAccessToken)
}
