package models

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the identity of the connected user for the lifetime of one
// store instance. It is built once at session start and passed to the
// Conversation constructor; nothing reads ambient authentication state.
type Session struct {
	UserID      string
	Username    string
	DisplayName string
	GroupIDs    []string
}

type sessionClaims struct {
	Username    string   `json:"preferred_username"`
	DisplayName string   `json:"name"`
	GroupIDs    []string `json:"groups"`
	jwt.RegisteredClaims
}

// SessionFromToken decodes the portal session JWT into a Session. The token
// is not verified here: the backend authenticates every request itself, the
// client only needs the identity claims.
func SessionFromToken(token string) (*Session, error) {
	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("decoding session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("session token has no subject claim")
	}

	return &Session{
		UserID:      claims.Subject,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		GroupIDs:    claims.GroupIDs,
	}, nil
}

// InGroup reports whether the session user belongs to the given group
func (s *Session) InGroup(groupID string) bool {
	for _, id := range s.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// IsMeInside reports whether any reference in the list is the session user or
// one of their groups. Used for inbox classification of a message.
func (s *Session) IsMeInside(refs []User) bool {
	for _, ref := range refs {
		if ref.ID == s.UserID || s.InGroup(ref.ID) {
			return true
		}
	}
	return false
}
