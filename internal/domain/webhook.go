package domain

// WebhookEvent is a verified Shopify webhook delivery
type WebhookEvent struct {
	Topic   string
	Shop    string
	Payload []byte
}

// AdminSession is the authenticated merchant context of an admin request
type AdminSession struct {
	Shop        string
	AccessToken string
	UserID      string
}
