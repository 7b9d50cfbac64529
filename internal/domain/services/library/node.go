package library

import (
	"context"

	"courseware/internal/domain/models/library"
	"courseware/internal/domain/services"
)

// NodeService handles node-level operations: the node store contract,
// renames and explanation videos.
type NodeService interface {
	// GetNode retrieves a node by ID
	GetNode(ctx context.Context, id string) (*library.Node, error)

	// ListChildren lists the immediate children of a folder
	ListChildren(ctx context.Context, id string) ([]library.Node, error)

	// CreateNode creates a folder or file under a parent folder
	CreateNode(ctx context.Context, req *CreateNodeRequest) (*library.Node, error)

	// DeleteNode deletes a node and all its descendants
	DeleteNode(ctx context.Context, id string) error

	// Rename changes a node's name and repairs descendant paths
	Rename(ctx context.Context, id string, req *RenameRequest) (*library.Node, error)

	// AttachVideo sets the explanation video of a file node
	AttachVideo(ctx context.Context, id string, req *VideoRequest) (*library.Node, error)

	// DetachVideo removes the explanation video of a file node
	DetachVideo(ctx context.Context, id string) (*library.Node, error)

	// Reconcile recomputes materialized paths for a node and its descendants
	Reconcile(ctx context.Context, id string) (*library.Node, error)

	// ResolveContent returns the retrievable location of a file node's bytes
	ResolveContent(ctx context.Context, id string) (*services.ContentInfo, error)

	// EnsureScopeRoot returns the scope's root folder, creating it if needed
	EnsureScopeRoot(ctx context.Context, scope library.Scope) (*library.Node, error)
}

// CreateNodeRequest represents a node creation request.
// Either ParentID or Scope must be set; with only Scope the node is created
// under the scope root.
type CreateNodeRequest struct {
	ParentID  string           `json:"parent_id,omitempty"`
	Scope     *library.Scope   `json:"scope,omitempty"`
	Name      string           `json:"name"`
	Kind      library.Kind     `json:"kind"`
	FileType  library.FileType `json:"file_type,omitempty"`  // inferred from the extension when empty
	SizeBytes int64            `json:"size_bytes,omitempty"` // taken from the content store when a content_id is known
	ContentID string           `json:"content_id,omitempty"`
	CanEdit   *bool            `json:"can_edit,omitempty"` // default: parent's can_edit
}

// RenameRequest represents a rename request
type RenameRequest struct {
	Name string `json:"name"`
}

// VideoRequest attaches an explanation video
type VideoRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}
