package entity

import (
	"encoding/json"
	"time"

	"archie-builder-credential-broker/internal/domain"
)

// TicketDoc is the stored shape of a ticket; the ticket value is the document key.
// ExpiresAtMillis exists so stores can range-filter on expiry numerically.
// BuilderData is kept as JSON text so stores never interpret its keys.
type TicketDoc struct {
	Shop            string          `json:"shop"`
	Used            bool            `json:"used"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	ExpiresAtMillis int64           `json:"expiresAtMillis"`
	CreatedAt       time.Time       `json:"createdAt"`
	BuilderData     string          `json:"builderData,omitempty"`
}

// ToDomain converts the stored document to a domain ticket
func (d *TicketDoc) ToDomain(ticket string) *domain.Ticket {
	return &domain.Ticket{
		Ticket:      ticket,
		Shop:        d.Shop,
		Used:        d.Used,
		ExpiresAt:   d.ExpiresAt,
		CreatedAt:   d.CreatedAt,
		BuilderData: builderData(d.BuilderData),
	}
}

func builderData(text string) json.RawMessage {
	if text == "" {
		return nil
	}
	return json.RawMessage(text)
}

// TicketDocFromDomain converts a domain ticket to its stored shape
func TicketDocFromDomain(ticket *domain.Ticket) *TicketDoc {
	return &TicketDoc{
		Shop:            ticket.Shop,
		Used:            ticket.Used,
		ExpiresAt:       ticket.ExpiresAt.UTC(),
		ExpiresAtMillis: ticket.ExpiresAt.UnixMilli(),
		CreatedAt:       ticket.CreatedAt.UTC(),
		BuilderData:     string(ticket.BuilderData),
	}
}
