package services

import (
	"context"

	"courseware/internal/domain/models"
	"courseware/internal/domain/models/library"
)

// ScopeAuthorizer decides whether a caller may read or mutate a scope.
// The library trusts its answer and only enforces node-level can_edit itself.
type ScopeAuthorizer interface {
	// CanView checks if the caller can read the scope's tree
	CanView(ctx context.Context, caller models.Caller, scope library.Scope) error

	// CanEdit checks if the caller can mutate the scope's tree
	CanEdit(ctx context.Context, caller models.Caller, scope library.Scope) error
}
