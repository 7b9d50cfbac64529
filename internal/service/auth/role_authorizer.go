package auth

import (
	"context"
	"fmt"

	"courseware/internal/domain"
	"courseware/internal/domain/models"
	"courseware/internal/domain/models/library"
	"courseware/internal/domain/services"
)

// RoleBasedAuthorizer implements ScopeAuthorizer from the caller's platform role.
//
//   - admins read and edit every scope
//   - instructors read every scope and edit course and module scopes
//   - trainees read course and module scopes and their own personal scope,
//     and edit only their own personal scope
type RoleBasedAuthorizer struct{}

// NewRoleBasedAuthorizer creates a new role-based authorizer
func NewRoleBasedAuthorizer() *RoleBasedAuthorizer {
	return &RoleBasedAuthorizer{}
}

var _ services.ScopeAuthorizer = (*RoleBasedAuthorizer)(nil)

// CanView checks if the caller can read the scope's tree
func (a *RoleBasedAuthorizer) CanView(ctx context.Context, caller models.Caller, scope library.Scope) error {
	switch caller.Role {
	case models.RoleAdmin, models.RoleInstructor:
		return nil
	case models.RoleTrainee:
		if scope.IsPersonal() && scope.TraineeID != caller.UserID {
			return fmt.Errorf("trainee %s cannot view %s: %w", caller.UserID, scope, domain.ErrPermissionDenied)
		}
		return nil
	default:
		return fmt.Errorf("role %q: %w", caller.Role, domain.ErrUnauthorized)
	}
}

// CanEdit checks if the caller can mutate the scope's tree
func (a *RoleBasedAuthorizer) CanEdit(ctx context.Context, caller models.Caller, scope library.Scope) error {
	switch caller.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleInstructor:
		if scope.IsPersonal() {
			return fmt.Errorf("instructors cannot edit personal scope %s: %w", scope, domain.ErrPermissionDenied)
		}
		return nil
	case models.RoleTrainee:
		if !scope.IsPersonal() || scope.TraineeID != caller.UserID {
			return fmt.Errorf("trainee %s cannot edit %s: %w", caller.UserID, scope, domain.ErrPermissionDenied)
		}
		return nil
	default:
		return fmt.Errorf("role %q: %w", caller.Role, domain.ErrUnauthorized)
	}
}
