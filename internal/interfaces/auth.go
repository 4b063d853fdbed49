package interfaces

import "context"

// Authenticator validates client-presented tokens and resolves the user
// identity they belong to.
type Authenticator interface {
	// Authenticate returns the user ID the token belongs to, or an error
	// when the token is unknown or revoked.
	Authenticate(ctx context.Context, token string) (string, error)
}
