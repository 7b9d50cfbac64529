package services

import (
	"context"

	"courseware/internal/domain/models/library"
)

// ContentInfo describes an immutable blob held by the byte storage backend
type ContentInfo struct {
	ContentID string `json:"content_id" dynamodbav:"content_id"`
	SizeBytes int64  `json:"size_bytes" dynamodbav:"size_bytes"`
	URL       string `json:"url" dynamodbav:"url"`
}

// ContentStore is the byte storage collaborator. The library never reads
// file bytes; it only asks for size and a retrievable URL.
type ContentStore interface {
	// Stat returns blob metadata (domain.ErrNotFound if unknown)
	Stat(ctx context.Context, contentID string) (*ContentInfo, error)
}

// QuotaManager tracks storage charged to personal scopes.
type QuotaManager interface {
	// Charge reserves bytes for the scope (domain.ErrQuotaExceeded if over limit)
	Charge(ctx context.Context, scope library.Scope, bytes int64) error

	// Refund releases previously charged bytes
	Refund(ctx context.Context, scope library.Scope, bytes int64) error
}
