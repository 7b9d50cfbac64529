package library

import (
	"slices"
	"strings"
	"time"
)

// Kind distinguishes folders from files
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// FileType classifies file content for icons and type filtering
type FileType string

const (
	FileTypeWord       FileType = "word"
	FileTypeExcel      FileType = "excel"
	FileTypePDF        FileType = "pdf"
	FileTypePowerPoint FileType = "powerpoint"
	FileTypeVideo      FileType = "video"
	FileTypeAudio      FileType = "audio"
	FileTypeImage      FileType = "image"
	FileTypeOther      FileType = "other"
)

// FileTypes lists every supported file type
var FileTypes = []FileType{
	FileTypeWord,
	FileTypeExcel,
	FileTypePDF,
	FileTypePowerPoint,
	FileTypeVideo,
	FileTypeAudio,
	FileTypeImage,
	FileTypeOther,
}

// Valid reports whether t is one of the supported file types
func (t FileType) Valid() bool {
	for _, ft := range FileTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// ExplanationVideo is a hint resource attached to a file node.
// It is distinct from the node's own content.
type ExplanationVideo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Node is a folder or file in exactly one scope.
type Node struct {
	ID               string            `json:"id"`
	ParentID         *string           `json:"parent_id"` // nil only for scope roots
	Name             string            `json:"name"`
	Kind             Kind              `json:"kind"`
	FileType         FileType          `json:"file_type,omitempty"`
	SizeBytes        int64             `json:"size_bytes"`
	ContentID        string            `json:"content_id,omitempty"` // immutable blob reference, shared by copies
	Path             string            `json:"path"`                 // slash-joined names from the scope root
	AncestorIDs      []string          `json:"ancestor_ids"`         // root first, parent last
	Scope            Scope             `json:"scope"`
	CanEdit          bool              `json:"can_edit"`
	ExplanationVideo *ExplanationVideo `json:"explanation_video,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Version          int64             `json:"version"`
}

// IsFolder reports whether the node can hold children
func (n *Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// IsRoot reports whether the node is its scope's root
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// ParentIDValue returns the parent id or "" for roots
func (n *Node) ParentIDValue() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// HasAncestor reports whether id appears in the node's materialized ancestor chain
func (n *Node) HasAncestor(id string) bool {
	for _, a := range n.AncestorIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy that shares no mutable state with n
func (n Node) Clone() Node {
	if n.ParentID != nil {
		parentID := *n.ParentID
		n.ParentID = &parentID
	}
	n.AncestorIDs = slices.Clone(n.AncestorIDs)
	if n.ExplanationVideo != nil {
		video := *n.ExplanationVideo
		n.ExplanationVideo = &video
	}
	return n
}

// SameName compares names the way sibling uniqueness does (case-insensitive)
func SameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// NameKey is the normalized form used to index sibling names
func NameKey(name string) string {
	return strings.ToLower(name)
}

// StringPtr returns a pointer to a copy of s
func StringPtr(s string) *string {
	return &s
}
