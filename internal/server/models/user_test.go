package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_DropsSecrets(t *testing.T) {
	rt := "refresh"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &User{
		ID: "u1", Username: "alice", Email: "a@x.io", FullName: "Alice A",
		PasswordHash: "$2a$hash", Avatar: "https://cdn/a.png", RefreshToken: &rt,
		CreatedAt: now, UpdatedAt: now,
	}

	pub := u.Sanitize()
	assert.Equal(t, "u1", pub.ID)
	assert.Equal(t, "https://cdn/a.png", pub.Avatar)
	assert.Equal(t, "", pub.CoverImage)

	b, err := json.Marshal(pub)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, fields, "passwordHash")
	assert.NotContains(t, fields, "refreshToken")
	assert.NotContains(t, string(b), "$2a$hash")
}

func TestHasRefreshToken(t *testing.T) {
	u := &User{}
	assert.False(t, u.HasRefreshToken(""))

	rt := "abc"
	u.RefreshToken = &rt
	assert.True(t, u.HasRefreshToken("abc"))
	assert.False(t, u.HasRefreshToken("abd"))
}
