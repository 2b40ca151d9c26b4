package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	user := &User{}
	require.NoError(t, user.HashPassword("alohomora"))

	assert.NotEqual(t, "alohomora", user.Password)
	assert.True(t, user.CheckPassword("alohomora"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestResetTokenLifecycle(t *testing.T) {
	user := &User{}
	require.NoError(t, user.GenerateResetToken())

	require.NotEmpty(t, user.ResetToken)
	require.NotNil(t, user.ResetTokenExpiry)
	assert.True(t, user.IsResetTokenValid(user.ResetToken))
	assert.False(t, user.IsResetTokenValid("other-token"))

	// Expired tokens are rejected
	expired := time.Now().Add(-time.Hour)
	user.ResetTokenExpiry = &expired
	assert.False(t, user.IsResetTokenValid(user.ResetToken))

	user.ClearResetToken()
	assert.Empty(t, user.ResetToken)
	assert.Nil(t, user.ResetTokenExpiry)
}

func TestToSafeUserStripsSecrets(t *testing.T) {
	user := &User{ID: "u1", Username: "harry", Password: "hash", ResetToken: "tok"}
	safe := user.ToSafeUser()

	assert.Empty(t, safe.Password)
	assert.Empty(t, safe.ResetToken)
	assert.Equal(t, "harry", safe.Username)
}

func TestProfileUpdateIsEmpty(t *testing.T) {
	assert.True(t, (ProfileUpdate{}).IsEmpty())

	name := "harry"
	assert.False(t, (ProfileUpdate{Username: &name}).IsEmpty())

	avatar := 3
	assert.False(t, (ProfileUpdate{Avatar: &avatar}).IsEmpty())
}
