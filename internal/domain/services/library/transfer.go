package library

import (
	"context"

	"courseware/internal/domain/models/library"
)

// CopyService deep-copies subtrees into another scope
type CopyService interface {
	// Copy clones the source subtree into the destination and returns the clone's root
	Copy(ctx context.Context, sourceID string, dest *CopyDestination) (*library.Node, error)
}

// CopyDestination selects where a clone lands. With TraineeID set the clone
// is a personal copy. FolderID defaults to the destination scope's root.
type CopyDestination struct {
	CourseID  string `json:"course_id"`
	ModuleID  string `json:"module_id,omitempty"`
	TraineeID string `json:"trainee_id,omitempty"`
	FolderID  string `json:"folder_id,omitempty"`
}

// Scope returns the destination scope
func (d *CopyDestination) Scope() library.Scope {
	return library.Scope{CourseID: d.CourseID, ModuleID: d.ModuleID, TraineeID: d.TraineeID}
}

// MoveService reparents subtrees in place
type MoveService interface {
	// Move reparents a node (and its subtree) under the destination folder
	Move(ctx context.Context, nodeID string, dest *MoveDestination) (*library.Node, error)
}

// MoveDestination names the new parent folder. CourseID/ModuleID are
// optional assertions about the parent's scope.
type MoveDestination struct {
	ParentID string `json:"parent_id"`
	CourseID string `json:"course_id,omitempty"`
	ModuleID string `json:"module_id,omitempty"`
}

// TreeService builds tree views
type TreeService interface {
	// LoadTree returns the scope's full tree, rooted at the scope root
	LoadTree(ctx context.Context, scope library.Scope) (*library.TreeNode, error)

	// FilterTree returns the pruned, ancestor-preserving view of the scope's tree
	FilterTree(ctx context.Context, scope library.Scope, opts library.FilterOptions) ([]*library.TreeNode, error)

	// VerifyScope checks every structural invariant of a scope
	VerifyScope(ctx context.Context, scope library.Scope) (*library.ScopeReport, error)
}
