package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"courseware/internal/domain"
	"courseware/internal/domain/models/library"
	repos "courseware/internal/domain/repositories/library"
)

// NodeRepository is an in-process node store. It enforces the same
// constraints as the postgres schema (unique sibling names, one root per
// scope, no orphans) so both stores behave identically under the services.
type NodeRepository struct {
	mu       sync.RWMutex
	nodes    map[string]library.Node
	children map[string]map[string]struct{} // parent id -> child ids
	roots    map[string]string              // scope key -> root id
}

// NewNodeRepository creates an empty in-memory node store
func NewNodeRepository() *NodeRepository {
	return &NodeRepository{
		nodes:    make(map[string]library.Node),
		children: make(map[string]map[string]struct{}),
		roots:    make(map[string]string),
	}
}

var _ repos.NodeRepository = (*NodeRepository)(nil)

// GetByID retrieves a node by ID
func (r *NodeRepository) GetByID(ctx context.Context, id string) (*library.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	clone := n.Clone()
	return &clone, nil
}

// ListChildren lists the immediate children of a folder, ordered by name
func (r *NodeRepository) ListChildren(ctx context.Context, parentID string) ([]library.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.nodes[parentID]; !ok {
		return nil, fmt.Errorf("node %s: %w", parentID, domain.ErrNotFound)
	}
	return r.childrenOf(parentID), nil
}

// ListSubtree returns the node followed by all its descendants, parents first
func (r *NodeRepository) ListSubtree(ctx context.Context, rootID string) ([]library.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	root, ok := r.nodes[rootID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", rootID, domain.ErrNotFound)
	}
	return r.walk(root), nil
}

// GetScopeRoot returns the root folder of a scope
func (r *NodeRepository) GetScopeRoot(ctx context.Context, scope library.Scope) (*library.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.roots[scope.Key()]
	if !ok {
		return nil, fmt.Errorf("root of %s: %w", scope, domain.ErrNotFound)
	}
	root := r.nodes[id].Clone()
	return &root, nil
}

// ListByScope returns every node of a scope, parents before children
func (r *NodeRepository) ListByScope(ctx context.Context, scope library.Scope) ([]library.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.roots[scope.Key()]
	if !ok {
		return []library.Node{}, nil
	}
	return r.walk(r.nodes[id]), nil
}

// Apply commits a change set atomically. Nothing is written unless every
// expected version matches and the resulting state satisfies the store's
// constraints.
func (r *NodeRepository) Apply(ctx context.Context, cs *library.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cs == nil || cs.IsEmpty() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, version := range cs.Expect {
		current, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("node %s no longer exists: %w", id, domain.ErrConflict)
		}
		if current.Version != version {
			return fmt.Errorf("node %s changed (version %d, expected %d): %w",
				id, current.Version, version, domain.ErrConflict)
		}
	}

	// Overlay of pending writes: nil marks a deletion
	overlay := make(map[string]*library.Node, cs.Size())
	for _, id := range cs.Deletes {
		if _, ok := r.nodes[id]; !ok {
			return fmt.Errorf("delete node %s: %w", id, domain.ErrConflict)
		}
		overlay[id] = nil
	}
	for i := range cs.Updates {
		n := cs.Updates[i].Clone()
		if _, ok := r.nodes[n.ID]; !ok {
			return fmt.Errorf("update node %s: %w", n.ID, domain.ErrConflict)
		}
		if _, deleted := overlay[n.ID]; deleted {
			return fmt.Errorf("node %s both updated and deleted: %w", n.ID, domain.ErrConflict)
		}
		overlay[n.ID] = &n
	}
	for i := range cs.Inserts {
		n := cs.Inserts[i].Clone()
		if _, exists := r.nodes[n.ID]; exists {
			return fmt.Errorf("insert node %s: duplicate id: %w", n.ID, domain.ErrConflict)
		}
		if _, staged := overlay[n.ID]; staged {
			return fmt.Errorf("insert node %s: duplicate id: %w", n.ID, domain.ErrConflict)
		}
		overlay[n.ID] = &n
	}

	if err := r.checkConstraints(overlay); err != nil {
		return err
	}

	// Commit
	for id, n := range overlay {
		if old, ok := r.nodes[id]; ok {
			r.unindex(old)
		}
		if n == nil {
			delete(r.nodes, id)
			delete(r.children, id)
			continue
		}
		r.nodes[id] = *n
	}
	for _, n := range overlay {
		if n != nil {
			r.index(*n)
		}
	}

	return nil
}

// Len returns the number of stored nodes
func (r *NodeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// checkConstraints validates the state that would result from the overlay.
// Must be called with the write lock held.
func (r *NodeRepository) checkConstraints(overlay map[string]*library.Node) error {
	lookup := func(id string) (library.Node, bool) {
		if n, staged := overlay[id]; staged {
			if n == nil {
				return library.Node{}, false
			}
			return *n, true
		}
		n, ok := r.nodes[id]
		return n, ok
	}

	touchedParents := make(map[string]struct{})
	rootScopes := make(map[string]string)

	for id, n := range overlay {
		if n == nil {
			// No surviving child may still point at a deleted node
			for childID := range r.children[id] {
				if child, ok := lookup(childID); ok && child.ParentIDValue() == id {
					return fmt.Errorf("node %s still has child %s: %w", id, childID, domain.ErrConflict)
				}
			}
			continue
		}

		if n.IsRoot() {
			key := n.Scope.Key()
			if other, ok := rootScopes[key]; ok && other != id {
				return fmt.Errorf("scope %s already has a root: %w", key, domain.ErrConflict)
			}
			if existing, ok := r.roots[key]; ok && existing != id {
				if cur, still := lookup(existing); still && cur.IsRoot() && cur.Scope.Key() == key {
					return fmt.Errorf("scope %s already has a root: %w", key, domain.ErrConflict)
				}
			}
			rootScopes[key] = id
			continue
		}

		parent, ok := lookup(*n.ParentID)
		if !ok {
			return fmt.Errorf("parent %s of node %s does not exist: %w", *n.ParentID, id, domain.ErrConflict)
		}
		if !parent.IsFolder() {
			return fmt.Errorf("parent %s of node %s is not a folder: %w", parent.ID, id, domain.ErrConflict)
		}
		touchedParents[parent.ID] = struct{}{}
	}

	for parentID := range touchedParents {
		seen := make(map[string]string)
		check := func(child library.Node) error {
			key := library.NameKey(child.Name)
			if other, dup := seen[key]; dup && other != child.ID {
				return fmt.Errorf("name %q used by both %s and %s: %w", child.Name, other, child.ID, domain.ErrConflict)
			}
			seen[key] = child.ID
			return nil
		}
		for childID := range r.children[parentID] {
			if _, staged := overlay[childID]; staged {
				continue
			}
			if err := check(r.nodes[childID]); err != nil {
				return err
			}
		}
		for _, n := range overlay {
			if n != nil && n.ParentIDValue() == parentID {
				if err := check(*n); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (r *NodeRepository) index(n library.Node) {
	if n.IsRoot() {
		r.roots[n.Scope.Key()] = n.ID
		return
	}
	set, ok := r.children[*n.ParentID]
	if !ok {
		set = make(map[string]struct{})
		r.children[*n.ParentID] = set
	}
	set[n.ID] = struct{}{}
}

func (r *NodeRepository) unindex(n library.Node) {
	if n.IsRoot() {
		if r.roots[n.Scope.Key()] == n.ID {
			delete(r.roots, n.Scope.Key())
		}
		return
	}
	if set, ok := r.children[*n.ParentID]; ok {
		delete(set, n.ID)
		if len(set) == 0 {
			delete(r.children, *n.ParentID)
		}
	}
}

// childrenOf returns cloned children ordered by name, then id.
// Must be called with the lock held.
func (r *NodeRepository) childrenOf(parentID string) []library.Node {
	set := r.children[parentID]
	out := make([]library.Node, 0, len(set))
	for id := range set {
		out = append(out, r.nodes[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := library.NameKey(out[i].Name), library.NameKey(out[j].Name)
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// walk returns root and its descendants in depth-first preorder.
// Must be called with the lock held.
func (r *NodeRepository) walk(root library.Node) []library.Node {
	var out []library.Node
	visited := make(map[string]struct{})

	var visit func(n library.Node)
	visit = func(n library.Node) {
		if _, seen := visited[n.ID]; seen {
			return
		}
		visited[n.ID] = struct{}{}
		out = append(out, n)
		if n.IsFolder() {
			for _, child := range r.childrenOf(n.ID) {
				visit(child)
			}
		}
	}
	visit(root.Clone())

	return out
}
