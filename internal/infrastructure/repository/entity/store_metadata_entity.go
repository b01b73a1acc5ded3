package entity

import "archie-builder-credential-broker/internal/domain"

// StoreMetadataDoc is the "metadata" document of a project database
type StoreMetadataDoc struct {
	PaymentPlan string           `json:"paymentPlan"`
	Ecommerce   EcommerceBinding `json:"ecommerce"`
}

// EcommerceBinding ties a project to the shop it was provisioned for
type EcommerceBinding struct {
	Platform string `json:"platform"`
	Shop     string `json:"shop"`
}

// ToDomain converts the stored document to domain plan metadata
func (d *StoreMetadataDoc) ToDomain() *domain.StorePlanMetadata {
	return &domain.StorePlanMetadata{
		PaymentPlan: domain.Plan(d.PaymentPlan),
		Shop:        d.Ecommerce.Shop,
	}
}
