package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

// StaticTokens verifies bearer tokens against the configured token list
type StaticTokens struct {
	tokens []common.AuthToken
}

var _ interfaces.ClaimsProvider = (*StaticTokens)(nil)

func NewStaticTokens(config *common.AuthConfig) *StaticTokens {
	tokens := make([]common.AuthToken, 0, len(config.Tokens))
	for _, t := range config.Tokens {
		if t.Token != "" && t.UserID != "" {
			tokens = append(tokens, t)
		}
	}
	return &StaticTokens{tokens: tokens}
}

// Verify compares the token against every entry in constant time
func (p *StaticTokens) Verify(ctx context.Context, token string) (*interfaces.Claims, error) {
	var match *common.AuthToken
	for i := range p.tokens {
		if subtle.ConstantTimeCompare([]byte(p.tokens[i].Token), []byte(token)) == 1 {
			match = &p.tokens[i]
		}
	}
	if match == nil {
		return nil, &common.PermissionError{Message: "invalid bearer token"}
	}
	return &interfaces.Claims{Subject: match.UserID, Email: match.Email}, nil
}

// Service resolves the Authorization header of a request to a stored user
type Service struct {
	claims interfaces.ClaimsProvider
	users  interfaces.UserStorage
	logger arbor.ILogger
}

func NewService(claims interfaces.ClaimsProvider, users interfaces.UserStorage, logger arbor.ILogger) *Service {
	return &Service{claims: claims, users: users, logger: logger}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate verifies the header and creates the user on first sight
func (s *Service) Authenticate(ctx context.Context, header string) (*models.User, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, &common.PermissionError{Message: "authentication required"}
	}

	claims, err := s.claims.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, &common.PermissionError{Message: "token carries no subject"}
	}

	now := time.Now().UTC()
	user, err := s.users.EnsureUser(ctx, &models.User{
		ID:        claims.Subject,
		Email:     claims.Email,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", claims.Subject).Msg("Failed to store user")
		return nil, err
	}
	return user, nil
}
