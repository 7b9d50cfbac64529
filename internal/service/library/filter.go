package library

import (
	"strings"

	lib "courseware/internal/domain/models/library"
)

// Filter returns the pruned view of a forest. A file is kept when it matches
// every given criterion; a folder is kept when a query matches its name or
// when any descendant is kept. Kept nodes retain their ancestor chain.
// The input is never modified; with no criteria the result is a deep copy.
func Filter(forest []*lib.TreeNode, opts lib.FilterOptions) []*lib.TreeNode {
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	out := make([]*lib.TreeNode, 0, len(forest))
	for _, t := range forest {
		if kept := filterNode(t, query, opts.FileType); kept != nil {
			out = append(out, kept)
		}
	}
	return out
}

func filterNode(t *lib.TreeNode, query string, fileType lib.FileType) *lib.TreeNode {
	if !t.IsFolder() {
		if !nameMatches(t.Name, query) {
			return nil
		}
		if fileType != "" && t.FileType != fileType {
			return nil
		}
		return &lib.TreeNode{Node: t.Node.Clone(), TotalSizeBytes: t.SizeBytes, Children: []*lib.TreeNode{}}
	}

	kept := &lib.TreeNode{Node: t.Node.Clone(), Children: []*lib.TreeNode{}}
	for _, c := range t.Children {
		if child := filterNode(c, query, fileType); child != nil {
			kept.Children = append(kept.Children, child)
			kept.TotalSizeBytes += child.TotalSizeBytes
		}
	}

	direct := query != "" && nameMatches(t.Name, query)
	if !direct && len(kept.Children) == 0 && (query != "" || fileType != "") {
		return nil
	}
	return kept
}

// nameMatches reports whether name contains the lowercased query
func nameMatches(name, query string) bool {
	return query == "" || strings.Contains(strings.ToLower(name), query)
}
