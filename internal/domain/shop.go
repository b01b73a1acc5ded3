package domain

import (
	"regexp"
	"strings"
)

var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*\.myshopify\.com$`)

// NormalizeShop lowercases a shop domain and reports whether it is a valid
// myshopify.com domain
func NormalizeShop(shop string) (string, bool) {
	shop = strings.ToLower(strings.TrimSpace(shop))
	return shop, shopDomainPattern.MatchString(shop)
}
