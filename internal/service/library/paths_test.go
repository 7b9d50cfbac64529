package library

import (
	"slices"
	"strings"
	"testing"

	lib "courseware/internal/domain/models/library"
)

// chain builds a valid scope: root -> docs -> week1 -> intro.pdf
func chain() []lib.Node {
	scope := lib.Scope{CourseID: "c1"}
	nodes := []lib.Node{
		{ID: "r", Name: "root", Kind: lib.KindFolder, Scope: scope},
		{ID: "d", ParentID: lib.StringPtr("r"), Name: "docs", Kind: lib.KindFolder, Scope: scope},
		{ID: "w", ParentID: lib.StringPtr("d"), Name: "week1", Kind: lib.KindFolder, Scope: scope},
		{ID: "f", ParentID: lib.StringPtr("w"), Name: "intro.pdf", Kind: lib.KindFile, FileType: lib.FileTypePDF, SizeBytes: 10, Scope: scope},
	}
	return DerivePaths(nil, nodes)
}

func TestDerivePaths(t *testing.T) {
	nodes := chain()

	want := map[string]struct {
		path      string
		ancestors []string
	}{
		"r": {"root", []string{}},
		"d": {"root/docs", []string{"r"}},
		"w": {"root/docs/week1", []string{"r", "d"}},
		"f": {"root/docs/week1/intro.pdf", []string{"r", "d", "w"}},
	}
	for _, n := range nodes {
		w := want[n.ID]
		if n.Path != w.path {
			t.Errorf("%s path = %q, want %q", n.ID, n.Path, w.path)
		}
		if !slices.Equal(n.AncestorIDs, w.ancestors) {
			t.Errorf("%s ancestors = %v, want %v", n.ID, n.AncestorIDs, w.ancestors)
		}
	}
}

func TestDerivePaths_Subtree(t *testing.T) {
	nodes := chain()
	parent := nodes[0]

	// Re-hang week1 directly under root after renaming it
	subtree := []lib.Node{nodes[2], nodes[3]}
	subtree[0].ParentID = lib.StringPtr("r")
	subtree[0].Name = "Week 1"

	got := DerivePaths(&parent, subtree)
	if got[0].Path != "root/Week 1" || got[1].Path != "root/Week 1/intro.pdf" {
		t.Errorf("paths = %q, %q", got[0].Path, got[1].Path)
	}
	if !slices.Equal(got[1].AncestorIDs, []string{"r", "w"}) {
		t.Errorf("ancestors = %v", got[1].AncestorIDs)
	}

	// Input is untouched
	if subtree[1].Path != "root/docs/week1/intro.pdf" {
		t.Errorf("input modified: %q", subtree[1].Path)
	}
	got[1].AncestorIDs[0] = "mutated"
	if subtree[1].AncestorIDs[0] != "r" {
		t.Error("output shares ancestor slice with input")
	}
}

func TestVerify(t *testing.T) {
	scope := lib.Scope{CourseID: "c1"}

	tests := []struct {
		name    string
		corrupt func(nodes []lib.Node) []lib.Node
		problem string
	}{
		{name: "valid"},
		{
			name:    "stale path",
			corrupt: func(n []lib.Node) []lib.Node { n[3].Path = "root/old/intro.pdf"; return n },
			problem: "path",
		},
		{
			name:    "stale ancestors",
			corrupt: func(n []lib.Node) []lib.Node { n[2].AncestorIDs = []string{"r"}; return n },
			problem: "ancestor ids",
		},
		{
			name: "sibling collision",
			corrupt: func(n []lib.Node) []lib.Node {
				dup := n[1]
				dup.ID = "d2"
				dup.Name = "DOCS"
				return append(n, DerivePaths(&n[0], []lib.Node{dup})...)
			},
			problem: "collides",
		},
		{
			name:    "file parent",
			corrupt: func(n []lib.Node) []lib.Node { n[2].Kind = lib.KindFile; n[2].FileType = lib.FileTypeOther; return n },
			problem: "is a file",
		},
		{
			name:    "wrong scope label",
			corrupt: func(n []lib.Node) []lib.Node { n[3].Scope = lib.Scope{CourseID: "c2"}; return n },
			problem: "does not match",
		},
		{
			name:    "missing parent",
			corrupt: func(n []lib.Node) []lib.Node { return append(n[:1], n[2:]...) },
			problem: "missing",
		},
		{
			name: "folder video",
			corrupt: func(n []lib.Node) []lib.Node {
				n[1].ExplanationVideo = &lib.ExplanationVideo{URL: "https://x", Title: "x"}
				return n
			},
			problem: "explanation video",
		},
		{
			name:    "invalid name",
			corrupt: func(n []lib.Node) []lib.Node { n[1].Name = "a/b"; return n },
			problem: "invalid name",
		},
		{
			name: "second root",
			corrupt: func(n []lib.Node) []lib.Node {
				return append(n, DerivePaths(nil, []lib.Node{{ID: "r2", Name: "other", Kind: lib.KindFolder, Scope: scope}})...)
			},
			problem: "roots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := chain()
			if tt.corrupt != nil {
				nodes = tt.corrupt(nodes)
			}
			violations := Verify(scope, nodes, 255)

			if tt.problem == "" {
				if len(violations) != 0 {
					t.Errorf("violations = %v, want none", violations)
				}
				return
			}
			found := false
			for _, v := range violations {
				if strings.Contains(v.Problem, tt.problem) {
					found = true
				}
			}
			if !found {
				t.Errorf("violations = %v, want one mentioning %q", violations, tt.problem)
			}
		})
	}
}

func TestVerify_Empty(t *testing.T) {
	if v := Verify(lib.Scope{CourseID: "c1"}, nil, 255); v != nil {
		t.Errorf("Verify(nil) = %v, want nil", v)
	}
}
