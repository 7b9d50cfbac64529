package models

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the caller's platform role
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleTrainee    Role = "trainee"
)

// Claims represents the JWT claims issued by the platform's identity provider.
type Claims struct {
	jwt.RegisteredClaims        // sub, iss, aud, exp, iat, ...
	Email                string `json:"email"`
	Role                 Role   `json:"role"`
}

// Caller returns the identity the library trusts for authorization
func (c *Claims) Caller() Caller {
	return Caller{UserID: c.Subject, Role: c.Role}
}

// Caller identifies who issued a request
type Caller struct {
	UserID string
	Role   Role
}

// IsStaff reports whether the caller manages course content
func (c Caller) IsStaff() bool {
	return c.Role == RoleAdmin || c.Role == RoleInstructor
}

type callerContextKey struct{}

// WithCaller stores the authenticated caller in the context
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// CallerFromContext retrieves the authenticated caller, if any
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerContextKey{}).(Caller)
	return c, ok
}
