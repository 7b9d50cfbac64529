package library

import (
	"context"
	"errors"
	"slices"

	"courseware/internal/domain"
	lib "courseware/internal/domain/models/library"
	librarySvc "courseware/internal/domain/services/library"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type moveService struct {
	*Core
}

// NewMoveService creates the move engine
func NewMoveService(core *Core) librarySvc.MoveService {
	return &moveService{Core: core}
}

// Move reparents a node and its subtree under the destination folder.
// Ids, content and permissions are kept; only parent, scope labels and
// materialized paths change.
func (s *moveService) Move(ctx context.Context, nodeID string, dest *librarySvc.MoveDestination) (*lib.Node, error) {
	const op = "move"

	if dest == nil {
		return nil, domain.NewOpError(op, nodeID, domain.ErrValidation, "destination is required")
	}
	if err := validation.ValidateStruct(dest,
		validation.Field(&dest.ParentID, validation.Required),
	); err != nil {
		return nil, domain.NewOpError(op, nodeID, domain.ErrValidation, "%v", err)
	}

	n, err := s.getNode(ctx, op, nodeID)
	if err != nil {
		return nil, err
	}
	parent, err := s.getDestination(ctx, nodeID, dest.ParentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, op, n.Scope, true); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, op, parent.Scope, true); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, op, n.Scope, parent.Scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; a scope change in between means another
	// mutation won the race
	lockedNode, err := s.getNode(ctx, op, nodeID)
	if err != nil {
		return nil, err
	}
	lockedParent, err := s.getDestination(ctx, nodeID, dest.ParentID)
	if err != nil {
		return nil, err
	}
	if lockedNode.Scope.LockKey() != n.Scope.LockKey() || lockedParent.Scope.LockKey() != parent.Scope.LockKey() {
		return nil, domain.NewOpError(op, nodeID, domain.ErrConflict, "node or destination changed scope during the move")
	}
	n, parent = lockedNode, lockedParent

	if err := s.checkMove(n, parent, dest); err != nil {
		return nil, err
	}

	chain, err := s.ancestorChain(ctx, op, parent.ID)
	if err != nil {
		return nil, err
	}
	if slices.Contains(chain, n.ID) {
		return nil, domain.NewOpError(op, nodeID, domain.ErrCyclicMove,
			"destination %s is the node itself or one of its descendants", parent.ID)
	}

	if n.ParentIDValue() == parent.ID {
		return n, nil
	}

	siblings, err := s.repo.ListChildren(ctx, parent.ID)
	if err != nil {
		return nil, domain.WrapOpError(op, nodeID, err)
	}
	name := n.Name
	taken := takenNames(siblings, n.ID)
	if other, clash := taken[lib.NameKey(name)]; clash {
		if s.opts.MoveCollisionPolicy != CollisionSuffix {
			return nil, domain.NewOpError(op, nodeID, domain.ErrNameCollision,
				"a node named %q already exists in the destination (%s)", name, other)
		}
		name = freeName(name, n.Kind, taken, s.opts.MaxNameLength)
	}

	subtree, err := s.repo.ListSubtree(ctx, nodeID)
	if err != nil {
		return nil, domain.WrapOpError(op, nodeID, err)
	}
	if err := checkDepth(op, nodeID, parent, subtreeHeight(subtree)); err != nil {
		return nil, err
	}
	oldScope := n.Scope

	subtree[0].ParentID = lib.StringPtr(parent.ID)
	subtree[0].Name = name
	subtree[0].UpdatedAt = s.now()
	for i := range subtree {
		if err := ctx.Err(); err != nil {
			return nil, domain.WrapOpError(op, nodeID, err)
		}
		subtree[i].Scope = parent.Scope
	}

	cs := &lib.ChangeSet{}
	for _, moved := range DerivePaths(parent, subtree) {
		cs.Update(moved)
	}
	cs.Require(*parent)
	if err := s.touchRoot(ctx, cs, oldScope); err != nil {
		return nil, domain.WrapOpError(op, nodeID, err)
	}
	if parent.Scope.Key() != oldScope.Key() {
		if err := s.touchRoot(ctx, cs, parent.Scope); err != nil {
			return nil, domain.WrapOpError(op, nodeID, err)
		}
	}
	if err := s.commit(ctx, op, nodeID, cs); err != nil {
		return nil, err
	}

	moved, _ := cs.Updated(nodeID)
	s.logger.Info("subtree moved",
		"id", nodeID,
		"from_scope", oldScope.Key(),
		"to_scope", moved.Scope.Key(),
		"path", moved.Path,
		"nodes", len(subtree),
	)

	return &moved, nil
}

func (s *moveService) getDestination(ctx context.Context, nodeID, parentID string) (*lib.Node, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewOpError("move", nodeID, domain.ErrNotFound, "destination folder %s does not exist", parentID)
		}
		return nil, domain.WrapOpError("move", nodeID, err)
	}
	return parent, nil
}

// checkMove applies the rules that need no further reads
func (s *moveService) checkMove(n, parent *lib.Node, dest *librarySvc.MoveDestination) error {
	const op = "move"

	if n.IsRoot() {
		return domain.NewOpError(op, n.ID, domain.ErrInvalidParent, "scope roots cannot be moved")
	}
	if !n.CanEdit {
		return domain.NewOpError(op, n.ID, domain.ErrPermissionDenied, "node is read-only")
	}
	if !parent.IsFolder() {
		return domain.NewOpError(op, n.ID, domain.ErrInvalidParent, "destination %s is a file", parent.ID)
	}
	if dest.CourseID != "" && dest.CourseID != parent.Scope.CourseID {
		return domain.NewOpError(op, n.ID, domain.ErrInvalidParent,
			"destination %s is in course %q, not %q", parent.ID, parent.Scope.CourseID, dest.CourseID)
	}
	if dest.ModuleID != "" && dest.ModuleID != parent.Scope.ModuleID {
		return domain.NewOpError(op, n.ID, domain.ErrInvalidParent,
			"destination %s is in module %q, not %q", parent.ID, parent.Scope.ModuleID, dest.ModuleID)
	}
	// Personal copies never leave, or enter, a trainee's space by moving
	if (n.Scope.IsPersonal() || parent.Scope.IsPersonal()) && n.Scope.LockKey() != parent.Scope.LockKey() {
		return domain.NewOpError(op, n.ID, domain.ErrInvalidParent,
			"cannot move between %s and %s", n.Scope, parent.Scope)
	}
	return nil
}
