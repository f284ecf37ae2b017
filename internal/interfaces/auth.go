package interfaces

import "context"

// Claims are the verified identity of a request
type Claims struct {
	Subject string // User ID
	Email   string
}

// ClaimsProvider verifies a bearer token
type ClaimsProvider interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}
