package library

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"courseware/internal/domain"
	lib "courseware/internal/domain/models/library"
	librarySvc "courseware/internal/domain/services/library"
)

type treeService struct {
	*Core
}

// NewTreeService creates the tree view service
func NewTreeService(core *Core) librarySvc.TreeService {
	return &treeService{Core: core}
}

// LoadTree returns the scope's full tree, rooted at the scope root
func (s *treeService) LoadTree(ctx context.Context, scope lib.Scope) (*lib.TreeNode, error) {
	const op = "load_tree"

	if err := scope.Validate(); err != nil {
		return nil, domain.NewOpError(op, "", domain.ErrValidation, "%v", err)
	}
	if err := s.authorize(ctx, op, scope, false); err != nil {
		return nil, err
	}
	if _, err := s.ensureRoot(ctx, op, scope); err != nil {
		return nil, err
	}

	nodes, err := s.repo.ListByScope(ctx, scope)
	if err != nil {
		return nil, domain.WrapOpError(op, "", err)
	}
	tree, err := BuildTree(nodes)
	if err != nil {
		return nil, domain.WrapOpError(op, "", err)
	}

	s.logger.Debug("tree built",
		"scope", scope.Key(),
		"nodes", len(nodes),
		"total_size_bytes", tree.TotalSizeBytes,
	)

	return tree, nil
}

// FilterTree returns the pruned, ancestor-preserving view of the scope's tree
func (s *treeService) FilterTree(ctx context.Context, scope lib.Scope, opts lib.FilterOptions) ([]*lib.TreeNode, error) {
	if err := opts.Validate(); err != nil {
		return nil, domain.NewOpError("filter_tree", "", domain.ErrValidation, "%v", err)
	}
	tree, err := s.LoadTree(ctx, scope)
	if err != nil {
		return nil, err
	}
	return Filter([]*lib.TreeNode{tree}, opts), nil
}

// VerifyScope checks every structural invariant of a scope
func (s *treeService) VerifyScope(ctx context.Context, scope lib.Scope) (*lib.ScopeReport, error) {
	const op = "verify"

	if err := scope.Validate(); err != nil {
		return nil, domain.NewOpError(op, "", domain.ErrValidation, "%v", err)
	}
	if err := s.authorize(ctx, op, scope, true); err != nil {
		return nil, err
	}

	nodes, err := s.repo.ListByScope(ctx, scope)
	if err != nil {
		return nil, domain.WrapOpError(op, "", err)
	}

	report := &lib.ScopeReport{
		Scope:      scope,
		NodeCount:  len(nodes),
		Violations: Verify(scope, nodes, s.opts.MaxNameLength),
	}
	if report.Violations == nil {
		report.Violations = []lib.Violation{}
	}
	if !report.OK() {
		s.logger.Warn("scope invariants violated",
			"scope", scope.Key(),
			"violations", len(report.Violations),
		)
	}

	return report, nil
}

// BuildTree nests a scope's nodes under its root. nodes must start with the
// root; children are ordered folders first, then by name.
func BuildTree(nodes []lib.Node) (*lib.TreeNode, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes: %w", domain.ErrNotFound)
	}

	// First pass: create all tree nodes
	byID := make(map[string]*lib.TreeNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = &lib.TreeNode{Node: n.Clone(), Children: []*lib.TreeNode{}}
	}

	// Second pass: attach children to parents
	root := byID[nodes[0].ID]
	for _, n := range nodes[1:] {
		if parent, ok := byID[n.ParentIDValue()]; ok {
			parent.Children = append(parent.Children, byID[n.ID])
		}
	}

	// Third pass: order siblings and derive folder sizes
	finishTree(root)

	return root, nil
}

// finishTree sorts children and computes TotalSizeBytes bottom-up
func finishTree(t *lib.TreeNode) int64 {
	if !t.IsFolder() {
		t.TotalSizeBytes = t.SizeBytes
		return t.TotalSizeBytes
	}
	sortChildren(t.Children)
	var total int64
	for _, c := range t.Children {
		total += finishTree(c)
	}
	t.TotalSizeBytes = total
	return total
}

func sortChildren(children []*lib.TreeNode) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		ka, kb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if ka != kb {
			return ka < kb
		}
		return a.ID < b.ID
	})
}
