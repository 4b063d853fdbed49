// -----------------------------------------------------------------------
// Auth Service - Static token authentication for websocket and API clients
// -----------------------------------------------------------------------

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/merx/internal/common"
)

// Service authenticates bearer tokens against the configured token map.
// Tokens are opaque strings bound to a single user identity. Implements
// interfaces.Authenticator.
type Service struct {
	tokens map[string]string // token -> user id
	logger arbor.ILogger
}

// NewService creates an authenticator from configuration
func NewService(config *common.AuthConfig, logger arbor.ILogger) *Service {
	tokens := make(map[string]string)
	if config != nil {
		for token, userID := range config.Tokens {
			tokens[token] = userID
		}
	}
	return &Service{
		tokens: tokens,
		logger: logger,
	}
}

// Authenticate resolves a token to its user identity. Comparison is
// constant-time per candidate so token length never leaks through timing.
func (s *Service) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token is required")
	}

	for candidate, userID := range s.tokens {
		if len(candidate) == len(token) &&
			subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return userID, nil
		}
	}

	s.logger.Warn().Msg("Rejected unknown auth token")
	return "", fmt.Errorf("invalid token")
}
