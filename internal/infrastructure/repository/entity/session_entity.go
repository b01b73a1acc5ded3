package entity

import (
	"time"

	"archie-builder-credential-broker/internal/domain"
)

// SessionDoc is the stored shape of a session. The session id is the
// document key and never part of the written fields.
type SessionDoc struct {
	Shop                string     `json:"shop"`
	State               string     `json:"state"`
	IsOnline            bool       `json:"isOnline"`
	Scope               *string    `json:"scope"`
	Expires             *time.Time `json:"expires"`
	AccessToken         string     `json:"accessToken"`
	UserID              *int64     `json:"userId"`
	FirstName           *string    `json:"firstName"`
	LastName            *string    `json:"lastName"`
	Email               *string    `json:"email"`
	AccountOwner        *bool      `json:"accountOwner"`
	Locale              *string    `json:"locale"`
	Collaborator        *bool      `json:"collaborator"`
	EmailVerified       *bool      `json:"emailVerified"`
	RefreshToken        *string    `json:"refreshToken"`
	RefreshTokenExpires *time.Time `json:"refreshTokenExpires"`
}

// ToDomain converts the stored document to a domain session
func (d *SessionDoc) ToDomain(id string) *domain.Session {
	session := &domain.Session{
		ID:                  id,
		Shop:                d.Shop,
		State:               d.State,
		IsOnline:            d.IsOnline,
		Expires:             d.Expires,
		AccessToken:         d.AccessToken,
		RefreshTokenExpires: d.RefreshTokenExpires,
	}
	if d.Scope != nil {
		session.Scope = *d.Scope
	}
	if d.RefreshToken != nil {
		session.RefreshToken = *d.RefreshToken
	}

	// Identity only exists when a user id was persisted
	if d.UserID != nil {
		session.UserIdentity = &domain.UserIdentity{
			ID:            *d.UserID,
			FirstName:     deref(d.FirstName),
			LastName:      deref(d.LastName),
			Email:         deref(d.Email),
			AccountOwner:  derefBool(d.AccountOwner),
			Locale:        deref(d.Locale),
			Collaborator:  derefBool(d.Collaborator),
			EmailVerified: derefBool(d.EmailVerified),
		}
	}
	return session
}

// SessionDocFromDomain converts a domain session to its stored shape.
// Offline sessions store every identity field as null.
func SessionDocFromDomain(session *domain.Session) *SessionDoc {
	doc := &SessionDoc{
		Shop:                session.Shop,
		State:               session.State,
		IsOnline:            session.IsOnline,
		Expires:             session.Expires,
		AccessToken:         session.AccessToken,
		RefreshTokenExpires: session.RefreshTokenExpires,
	}
	if session.Scope != "" {
		doc.Scope = &session.Scope
	}
	if session.RefreshToken != "" {
		doc.RefreshToken = &session.RefreshToken
	}

	if session.IsOnline && session.UserIdentity != nil {
		u := session.UserIdentity
		doc.UserID = &u.ID
		doc.FirstName = &u.FirstName
		doc.LastName = &u.LastName
		doc.Email = &u.Email
		doc.AccountOwner = &u.AccountOwner
		doc.Locale = &u.Locale
		doc.Collaborator = &u.Collaborator
		doc.EmailVerified = &u.EmailVerified
	}
	return doc
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	return b != nil && *b
}
