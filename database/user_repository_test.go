package database

import (
	"testing"
	"time"

	"quiz-portal-go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson"
)

func TestUserReplaceUpdateClearsUsedResetToken(t *testing.T) {
	user := &models.User{ID: "u1", Username: "harry", Email: "harry@hogwarts.edu", TeamID: "t1"}
	require.NoError(t, user.GenerateResetToken())
	user.ClearResetToken()

	// omitempty drops the cleared fields from the $set document, so the
	// update must carry an explicit $unset for them.
	raw, err := bson.Marshal(user)
	require.NoError(t, err)
	var set bson.M
	require.NoError(t, bson.Unmarshal(raw, &set))
	_, hasToken := set["resetToken"]
	_, hasExpiry := set["resetTokenExpiry"]
	require.False(t, hasToken)
	require.False(t, hasExpiry)

	update := userReplaceUpdate(user)
	unset, ok := update["$unset"].(bson.M)
	require.True(t, ok, "cleared reset token must be unset explicitly")
	assert.Contains(t, unset, "resetToken")
	assert.Contains(t, unset, "resetTokenExpiry")
	assert.NotContains(t, unset, "teamId", "populated team reference stays")
}

func TestUserReplaceUpdateKeepsActiveResetToken(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)
	user := &models.User{ID: "u1", ResetToken: "tok", ResetTokenExpiry: &expiry}

	update := userReplaceUpdate(user)
	if unset, ok := update["$unset"].(bson.M); ok {
		assert.NotContains(t, unset, "resetToken")
		assert.NotContains(t, unset, "resetTokenExpiry")
	}
}

func TestUserReplaceUpdateClearsTeamReference(t *testing.T) {
	user := &models.User{ID: "u1", ResetToken: "tok"}
	expiry := time.Now().Add(time.Hour)
	user.ResetTokenExpiry = &expiry

	update := userReplaceUpdate(user)
	unset, ok := update["$unset"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, unset, "teamId")
}

func TestEmailFilterIsExactMatch(t *testing.T) {
	filter := emailFilter("  John+Tag@Hogwarts.EDU ")
	assert.Equal(t, bson.M{"email": "john+tag@hogwarts.edu"}, filter,
		"lookup must not treat address metacharacters as a pattern")
}
