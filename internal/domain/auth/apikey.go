// Package auth holds the admin API-key identity the security guard and its
// stores share.
package auth

import "context"

// APIKeyInfo holds the identity and permission data for a validated admin
// API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
