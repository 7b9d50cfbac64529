package auth

import "courseware/internal/domain/models"

// JWTVerifier validates bearer tokens issued by the platform's identity provider.
// The middleware depends on this interface only.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or badly signed.
	VerifyToken(tokenString string) (*models.Claims, error)

	// Close releases any resources held by the verifier
	Close() error
}
