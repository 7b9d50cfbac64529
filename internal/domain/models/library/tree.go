package library

import (
	"fmt"
	"strings"
)

// TreeNode is a node with its nested children, used for tree views.
// Node fields are flattened into the JSON object.
type TreeNode struct {
	Node
	TotalSizeBytes int64       `json:"total_size_bytes"` // derived: sum of file sizes in the subtree
	Children       []*TreeNode `json:"children"`
}

// FilterOptions selects nodes for a pruned tree view
type FilterOptions struct {
	Query    string   `json:"query,omitempty"`     // case-insensitive substring of the name
	FileType FileType `json:"file_type,omitempty"` // exact file type; folders always pass
}

// IsEmpty reports whether no criteria are set
func (o FilterOptions) IsEmpty() bool {
	return strings.TrimSpace(o.Query) == "" && o.FileType == ""
}

// Validate checks the file type is a known one
func (o FilterOptions) Validate() error {
	if o.FileType != "" && !o.FileType.Valid() {
		return fmt.Errorf("unknown file type: %q", o.FileType)
	}
	return nil
}

// Violation describes one broken invariant found by a scope check
type Violation struct {
	NodeID  string `json:"node_id"`
	Problem string `json:"problem"`
}

// ScopeReport is the result of verifying every invariant of a scope
type ScopeReport struct {
	Scope      Scope       `json:"scope"`
	NodeCount  int         `json:"node_count"`
	Violations []Violation `json:"violations"`
}

// OK reports whether the scope satisfies every invariant
func (r *ScopeReport) OK() bool {
	return len(r.Violations) == 0
}
