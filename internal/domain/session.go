package domain

import (
	"fmt"
	"time"
)

// Session represents a Shopify OAuth session as stored by the app
type Session struct {
	ID                  string        `json:"id"`
	Shop                string        `json:"shop"`
	State               string        `json:"state"`
	IsOnline            bool          `json:"isOnline"`
	Scope               string        `json:"scope,omitempty"`
	Expires             *time.Time    `json:"expires,omitempty"`
	AccessToken         string        `json:"accessToken"`
	UserIdentity        *UserIdentity `json:"userIdentity,omitempty"`
	RefreshToken        string        `json:"refreshToken,omitempty"`
	RefreshTokenExpires *time.Time    `json:"refreshTokenExpires,omitempty"`
}

// UserIdentity is the associated user of an online session
type UserIdentity struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	AccountOwner  bool   `json:"accountOwner"`
	Locale        string `json:"locale"`
	Collaborator  bool   `json:"collaborator"`
	EmailVerified bool   `json:"emailVerified"`
}

// OfflineSessionID returns the id of the store-level session for a shop
func OfflineSessionID(shop string) string {
	return "offline_" + shop
}

// OnlineSessionID returns the id of a per-user session
func OnlineSessionID(shop string, userID int64) string {
	return fmt.Sprintf("%s_%d", shop, userID)
}

// IsActive reports whether the session carries a usable access token
func (s *Session) IsActive(now time.Time) bool {
	if s.AccessToken == "" {
		return false
	}
	if s.Expires != nil && !s.Expires.After(now) {
		return false
	}
	return true
}
