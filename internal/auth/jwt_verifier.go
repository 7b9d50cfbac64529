package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"courseware/internal/domain"
	"courseware/internal/domain/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// allowedAlgorithms prevents algorithm confusion attacks
var allowedAlgorithms = []string{"RS256", "ES256"}

// KeyedJWTVerifier implements JWTVerifier with a key lookup, normally a JWKS endpoint.
type KeyedJWTVerifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from a JWKS endpoint.
// keyfunc caches the key set and refreshes it based on HTTP cache headers.
func NewJWTVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return NewKeyedJWTVerifier(jwks.Keyfunc, logger), nil
}

// NewKeyedJWTVerifier creates a verifier over an arbitrary key lookup
func NewKeyedJWTVerifier(keyFunc jwt.Keyfunc, logger *slog.Logger) *KeyedJWTVerifier {
	return &KeyedJWTVerifier{
		keyFunc: keyFunc,
		parser:  jwt.NewParser(jwt.WithValidMethods(allowedAlgorithms), jwt.WithExpirationRequired()),
		logger:  logger,
	}
}

// VerifyToken validates a JWT and extracts the caller's claims.
// Only tokens carrying a subject and a known platform role are accepted.
func (v *KeyedJWTVerifier) VerifyToken(tokenString string) (*models.Claims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &models.Claims{}, v.keyFunc)
	if err != nil {
		v.logger.Debug("token rejected", "error", err.Error())
		return nil, domain.ErrUnauthorized
	}
	if !token.Valid {
		v.logger.Debug("token is invalid after parsing")
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok {
		v.logger.Error("failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	switch claims.Role {
	case models.RoleAdmin, models.RoleInstructor, models.RoleTrainee:
	default:
		v.logger.Warn("token has unknown role",
			"role", claims.Role,
			"user_id", claims.Subject,
		)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close is a no-op: keyfunc manages its own refresh goroutine through the
// context it was created with.
func (v *KeyedJWTVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
