package repository

// Collection names in the document store
const (
	SessionCollection   = "Session"
	AppDataCollection   = "ECommerceAppData"
	TicketCollection    = "Ticket"
	StoreDataCollection = "StoreData"

	// MetadataKey is the key of the plan metadata singleton in a project database
	MetadataKey = "metadata"
)
