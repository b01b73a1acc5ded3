package domain

import "time"

// EcomPlatformShopify is the only e-commerce platform this broker serves
const EcomPlatformShopify = "shopify"

// AppDataCommand selects how the builder treats an access request
type AppDataCommand string

const (
	// CommandCreate asks the builder to provision a new project
	CommandCreate AppDataCommand = "create"
	// CommandEdit points the builder at an already provisioned project
	CommandEdit AppDataCommand = "edit"
)

// AppDataRecord is an access request handed to the 3D builder.
// Records are append-only: every configuration mints a new one.
type AppDataRecord struct {
	Key          string         `json:"key"`
	EcomPlatform string         `json:"ecomPlatform"`
	Command      AppDataCommand `json:"command"`
	Shop         string         `json:"shop"`
	DBName       string         `json:"dbName,omitempty"`
	AccessToken  string         `json:"accessToken,omitempty"`
	APIKey       string         `json:"apiKey,omitempty"`
	Email        string         `json:"email,omitempty"`
	PaymentMode  Plan           `json:"paymentMode,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// IsNew reports whether the record asks the builder to create a project
func (r *AppDataRecord) IsNew() bool {
	return r.Command == CommandCreate
}

// Project is the tenant's provisioned builder workspace
type Project struct {
	DBName string
	Shop   string
}

// StorePlanMetadata is the "metadata" document of a project database
type StorePlanMetadata struct {
	PaymentPlan Plan
	Shop        string
}
