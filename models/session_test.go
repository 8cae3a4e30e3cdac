package models

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestSessionFromToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"sub":                "user-1",
		"preferred_username": "jmartin",
		"name":               "Jean Martin",
		"groups":             []string{"grp-1", "grp-2"},
	})

	session, err := SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "jmartin", session.Username)
	assert.Equal(t, "Jean Martin", session.DisplayName)
	assert.True(t, session.InGroup("grp-2"))
	assert.False(t, session.InGroup("grp-9"))
}

func TestSessionFromTokenRequiresSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"name": "nobody"})
	_, err := SessionFromToken(token)
	assert.Error(t, err)
}

func TestSessionFromTokenRejectsGarbage(t *testing.T) {
	_, err := SessionFromToken("not-a-token")
	assert.Error(t, err)
}

func TestIsMeInside(t *testing.T) {
	session := &Session{UserID: "user-1", GroupIDs: []string{"grp-1"}}

	assert.True(t, session.IsMeInside([]User{{ID: "user-2"}, {ID: "user-1"}}))
	assert.True(t, session.IsMeInside([]User{{ID: "grp-1"}}), "group membership counts")
	assert.False(t, session.IsMeInside([]User{{ID: "user-2"}}))
	assert.False(t, session.IsMeInside(nil))
}
