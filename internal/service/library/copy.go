package library

import (
	"context"
	"errors"

	"courseware/internal/domain"
	lib "courseware/internal/domain/models/library"
	"courseware/internal/domain/services"
	librarySvc "courseware/internal/domain/services/library"
)

type copyService struct {
	*Core
	quota services.QuotaManager
}

// NewCopyService creates the copy engine. quota may be nil.
func NewCopyService(core *Core, quota services.QuotaManager) librarySvc.CopyService {
	return &copyService{Core: core, quota: quota}
}

// Copy clones the source subtree into the destination and returns the clone's root.
// The source is read once, so copying a folder into its own subtree never
// includes the clone itself. Nothing is written unless the whole clone commits.
func (s *copyService) Copy(ctx context.Context, sourceID string, dest *librarySvc.CopyDestination) (*lib.Node, error) {
	const op = "copy"

	if dest == nil {
		return nil, domain.NewOpError(op, sourceID, domain.ErrValidation, "destination is required")
	}
	scope := dest.Scope()
	if err := scope.Validate(); err != nil {
		return nil, domain.NewOpError(op, sourceID, domain.ErrValidation, "%v", err)
	}

	source, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewOpError(op, sourceID, domain.ErrNotFound, "source node does not exist")
		}
		return nil, domain.WrapOpError(op, sourceID, err)
	}
	if err := s.authorize(ctx, op, source.Scope, false); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, op, scope, true); err != nil {
		return nil, err
	}

	snapshot, err := s.repo.ListSubtree(ctx, sourceID)
	if err != nil {
		return nil, domain.WrapOpError(op, sourceID, err)
	}

	// Personal copies pay for their bytes before anything is written
	charged := int64(0)
	if scope.IsPersonal() && s.quota != nil {
		if total := fileBytes(snapshot); total > 0 {
			if err := s.quota.Charge(ctx, scope, total); err != nil {
				return nil, domain.WrapOpError(op, sourceID, err)
			}
			charged = total
		}
	}

	clone, size, err := s.copyLocked(ctx, snapshot, scope, dest.FolderID)
	if err != nil {
		s.refundQuota(ctx, s.quota, op, scope, charged)
		return nil, err
	}

	s.logger.Info("subtree copied",
		"source_id", sourceID,
		"clone_id", clone.ID,
		"path", clone.Path,
		"scope", scope.Key(),
		"nodes", size,
		"bytes", charged,
	)

	return clone, nil
}

func (s *copyService) copyLocked(ctx context.Context, snapshot []lib.Node, scope lib.Scope, folderID string) (*lib.Node, int, error) {
	const op = "copy"
	sourceID := snapshot[0].ID

	unlock, err := s.lock(ctx, op, scope)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	root, err := s.ensureRoot(ctx, op, scope)
	if err != nil {
		return nil, 0, err
	}

	target := root
	if folderID != "" {
		target, err = s.repo.GetByID(ctx, folderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, 0, domain.NewOpError(op, sourceID, domain.ErrNotFound, "destination folder %s does not exist", folderID)
			}
			return nil, 0, domain.WrapOpError(op, sourceID, err)
		}
		if !target.IsFolder() {
			return nil, 0, domain.NewOpError(op, sourceID, domain.ErrInvalidParent, "destination %s is a file", folderID)
		}
		if target.Scope.Key() != scope.Key() {
			return nil, 0, domain.NewOpError(op, sourceID, domain.ErrInvalidParent,
				"destination folder %s belongs to %s, not %s", folderID, target.Scope, scope)
		}
	}
	if err := checkDepth(op, sourceID, target, subtreeHeight(snapshot)); err != nil {
		return nil, 0, err
	}

	siblings, err := s.repo.ListChildren(ctx, target.ID)
	if err != nil {
		return nil, 0, domain.WrapOpError(op, sourceID, err)
	}

	canEdit := root.CanEdit
	if scope.IsPersonal() {
		canEdit = true
	}

	now := s.now()
	ids := make(map[string]string, len(snapshot))
	clones := make([]lib.Node, 0, len(snapshot))

	for i, n := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, 0, domain.WrapOpError(op, sourceID, err)
		}

		c := n.Clone()
		c.ID = s.newID()
		ids[n.ID] = c.ID
		if i == 0 {
			c.ParentID = lib.StringPtr(target.ID)
			c.Name = freeName(n.Name, n.Kind, takenNames(siblings, ""), s.opts.MaxNameLength)
		} else {
			c.ParentID = lib.StringPtr(ids[n.ParentIDValue()])
		}
		c.Scope = scope
		c.CanEdit = canEdit
		c.CreatedAt = now
		c.UpdatedAt = now
		clones = append(clones, c)
	}
	clones = DerivePaths(target, clones)

	cs := &lib.ChangeSet{}
	for _, c := range clones {
		cs.Insert(c)
	}
	for _, n := range snapshot {
		cs.Require(n)
	}
	cs.Require(*target)
	if err := s.touchRoot(ctx, cs, scope); err != nil {
		return nil, 0, domain.WrapOpError(op, sourceID, err)
	}
	if err := s.commit(ctx, op, sourceID, cs); err != nil {
		return nil, 0, err
	}

	result := clones[0]
	result.Version = 1
	return &result, len(clones), nil
}
