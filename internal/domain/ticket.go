package domain

import (
	"encoding/json"
	"time"
)

// Ticket is a single-use, short-lived credential lookup
type Ticket struct {
	Ticket      string          `json:"ticket"`
	Shop        string          `json:"shop"`
	Used        bool            `json:"used"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	CreatedAt   time.Time       `json:"createdAt"`
	BuilderData json.RawMessage `json:"builderData,omitempty"`
}

// IsExpired reports whether the ticket is past its expiry at now
func (t *Ticket) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// CredentialBundle is what a builder receives for a valid ticket
type CredentialBundle struct {
	Shop        string          `json:"shop"`
	AccessToken string          `json:"accessToken"`
	APIKey      string          `json:"apiKey"`
	BuilderData json.RawMessage `json:"builderData,omitempty"`
}

// ResolvedCredentials is what a builder receives for a valid access key
type ResolvedCredentials struct {
	Shop        string `json:"shop"`
	DBName      string `json:"dbName"`
	AccessToken string `json:"accessToken"`
	APIKey      string `json:"apiKey"`
	Email       string `json:"email"`
	PaymentMode Plan   `json:"paymentMode"`
	Plan        Plan   `json:"plan"`
	IsNew       bool   `json:"isNew"`
}
