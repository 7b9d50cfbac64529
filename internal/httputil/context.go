package httputil

import (
	"net/http"

	"courseware/internal/domain/models"
)

// WithCaller adds the authenticated caller to the request context
func WithCaller(r *http.Request, caller models.Caller) *http.Request {
	return r.WithContext(models.WithCaller(r.Context(), caller))
}

// GetCaller retrieves the caller from context
func GetCaller(r *http.Request) (models.Caller, bool) {
	return models.CallerFromContext(r.Context())
}

// GetUserID retrieves the caller's user ID, returns empty string if not found
func GetUserID(r *http.Request) string {
	caller, _ := GetCaller(r)
	return caller.UserID
}
