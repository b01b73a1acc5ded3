package entity

import (
	"time"

	"archie-builder-credential-broker/internal/domain"
)

// AppDataDoc is the stored shape of an ECommerceAppData record
type AppDataDoc struct {
	EcomPlatform string    `json:"ecomPlatform"`
	Command      string    `json:"command"`
	Shop         string    `json:"shop"`
	DBName       string    `json:"dbName,omitempty"`
	AccessToken  string    `json:"accessToken,omitempty"`
	APIKey       string    `json:"apiKey,omitempty"`
	Email        string    `json:"email,omitempty"`
	PaymentMode  string    `json:"paymentMode,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToDomain converts the stored document to a domain record
func (d *AppDataDoc) ToDomain(key string) *domain.AppDataRecord {
	return &domain.AppDataRecord{
		Key:          key,
		EcomPlatform: d.EcomPlatform,
		Command:      domain.AppDataCommand(d.Command),
		Shop:         d.Shop,
		DBName:       d.DBName,
		AccessToken:  d.AccessToken,
		APIKey:       d.APIKey,
		Email:        d.Email,
		PaymentMode:  domain.Plan(d.PaymentMode),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// AppDataDocFromDomain converts a domain record to its stored shape
func AppDataDocFromDomain(record *domain.AppDataRecord) *AppDataDoc {
	return &AppDataDoc{
		EcomPlatform: record.EcomPlatform,
		Command:      string(record.Command),
		Shop:         record.Shop,
		DBName:       record.DBName,
		AccessToken:  record.AccessToken,
		APIKey:       record.APIKey,
		Email:        record.Email,
		PaymentMode:  string(record.PaymentMode),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}
