package library

import (
	"fmt"
	"slices"

	"courseware/internal/config"
	models "courseware/internal/domain/models/library"
)

// DerivePaths recomputes Path and AncestorIDs for a subtree.
// subtree must list parents before children; subtree[0] hangs under parent,
// or is a scope root when parent is nil. The input is not modified.
func DerivePaths(parent *models.Node, subtree []models.Node) []models.Node {
	out := make([]models.Node, len(subtree))
	byID := make(map[string]int, len(subtree))

	for i, n := range subtree {
		n = n.Clone()

		var p *models.Node
		if i == 0 {
			p = parent
		} else if j, ok := byID[n.ParentIDValue()]; ok {
			p = &out[j]
		}

		switch {
		case p != nil:
			n.Path = p.Path + "/" + n.Name
			n.AncestorIDs = append(append(make([]string, 0, len(p.AncestorIDs)+1), p.AncestorIDs...), p.ID)
		case n.IsRoot():
			n.Path = n.Name
			n.AncestorIDs = []string{}
		}

		out[i] = n
		byID[n.ID] = i
	}

	return out
}

// pathsDiffer reports whether the derived fields of two versions of a node differ
func pathsDiffer(a, b *models.Node) bool {
	return a.Path != b.Path || !slices.Equal(a.AncestorIDs, b.AncestorIDs)
}

// Verify checks every structural invariant over the nodes of one scope.
// nodes must list parents before children, starting at the scope root.
func Verify(scope models.Scope, nodes []models.Node, maxNameLength int) []models.Violation {
	var violations []models.Violation
	add := func(id, format string, args ...any) {
		violations = append(violations, models.Violation{NodeID: id, Problem: fmt.Sprintf(format, args...)})
	}

	if len(nodes) == 0 {
		return nil
	}

	byID := make(map[string]*models.Node, len(nodes))
	siblings := make(map[string]map[string]string)
	roots := 0

	for i := range nodes {
		n := &nodes[i]
		byID[n.ID] = n

		if n.Scope.Key() != scope.Key() {
			add(n.ID, "scope %s does not match %s", n.Scope, scope)
		}
		if clean, err := validateName(n.Name, maxNameLength); err != nil || clean != n.Name {
			add(n.ID, "invalid name %q", n.Name)
		}
		if !n.IsFolder() && n.Kind != models.KindFile {
			add(n.ID, "unknown kind %q", n.Kind)
		}
		if n.Kind == models.KindFile && !n.FileType.Valid() {
			add(n.ID, "unknown file type %q", n.FileType)
		}
		if n.SizeBytes < 0 {
			add(n.ID, "negative size %d", n.SizeBytes)
		}
		if n.IsFolder() && n.ExplanationVideo != nil {
			add(n.ID, "folder carries an explanation video")
		}
		if len(n.AncestorIDs) > config.MaxTreeDepth {
			add(n.ID, "depth %d exceeds %d", len(n.AncestorIDs), config.MaxTreeDepth)
		}

		var want models.Node
		if n.IsRoot() {
			roots++
			want = DerivePaths(nil, []models.Node{*n})[0]
		} else {
			parent, ok := byID[n.ParentIDValue()]
			if !ok {
				add(n.ID, "parent %s is missing or listed after the node", n.ParentIDValue())
				continue
			}
			if !parent.IsFolder() {
				add(n.ID, "parent %s is a file", parent.ID)
			}
			if slices.Contains(parent.AncestorIDs, n.ID) {
				add(n.ID, "node is its own ancestor")
			}
			want = DerivePaths(parent, []models.Node{*n})[0]

			set, ok := siblings[parent.ID]
			if !ok {
				set = make(map[string]string)
				siblings[parent.ID] = set
			}
			key := models.NameKey(n.Name)
			if other, dup := set[key]; dup {
				add(n.ID, "name %q collides with sibling %s", n.Name, other)
			}
			set[key] = n.ID
		}

		if n.Path != want.Path {
			add(n.ID, "path %q, want %q", n.Path, want.Path)
		}
		if !slices.Equal(n.AncestorIDs, want.AncestorIDs) {
			add(n.ID, "ancestor ids %v, want %v", n.AncestorIDs, want.AncestorIDs)
		}
	}

	if roots != 1 {
		add("", "scope has %d roots, want 1", roots)
	}

	return violations
}
