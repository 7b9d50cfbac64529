package library

import (
	"context"

	"courseware/internal/domain/models/library"
)

// NodeRepository is the authoritative record of folder/file nodes.
// Every read returns copies; mutations happen only through Apply.
type NodeRepository interface {
	// GetByID retrieves a node by ID (domain.ErrNotFound if absent)
	GetByID(ctx context.Context, id string) (*library.Node, error)

	// ListChildren lists the immediate children of a folder, ordered by name
	ListChildren(ctx context.Context, parentID string) ([]library.Node, error)

	// ListSubtree returns the node followed by all its descendants.
	// Parents always precede their children.
	ListSubtree(ctx context.Context, rootID string) ([]library.Node, error)

	// GetScopeRoot returns the root folder of a scope (domain.ErrNotFound if absent)
	GetScopeRoot(ctx context.Context, scope library.Scope) (*library.Node, error)

	// ListByScope returns every node of a scope, parents before children
	ListByScope(ctx context.Context, scope library.Scope) ([]library.Node, error)

	// Apply commits a change set atomically after checking its expected
	// versions (domain.ErrConflict on mismatch).
	Apply(ctx context.Context, cs *library.ChangeSet) error
}
