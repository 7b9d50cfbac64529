package library

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"courseware/internal/domain"
	lib "courseware/internal/domain/models/library"
	"courseware/internal/domain/services"
	librarySvc "courseware/internal/domain/services/library"
	"courseware/internal/filetypes"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type nodeService struct {
	*Core
	fileTypes *filetypes.Registry
	content   services.ContentStore
	quota     services.QuotaManager
}

// NewNodeService creates the node service. content and quota may be nil.
func NewNodeService(
	core *Core,
	fileTypes *filetypes.Registry,
	content services.ContentStore,
	quota services.QuotaManager,
) librarySvc.NodeService {
	return &nodeService{
		Core:      core,
		fileTypes: fileTypes,
		content:   content,
		quota:     quota,
	}
}

// GetNode retrieves a node by ID
func (s *nodeService) GetNode(ctx context.Context, id string) (*lib.Node, error) {
	n, err := s.getNode(ctx, "get", id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, "get", n.Scope, false); err != nil {
		return nil, err
	}
	return n, nil
}

// ListChildren lists the immediate children of a folder
func (s *nodeService) ListChildren(ctx context.Context, id string) ([]lib.Node, error) {
	n, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.IsFolder() {
		return []lib.Node{}, nil
	}
	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return nil, domain.WrapOpError("list_children", id, err)
	}
	return children, nil
}

// EnsureScopeRoot returns the scope's root folder, creating it if needed
func (s *nodeService) EnsureScopeRoot(ctx context.Context, scope lib.Scope) (*lib.Node, error) {
	if err := scope.Validate(); err != nil {
		return nil, domain.NewOpError("ensure_root", "", domain.ErrValidation, "%v", err)
	}
	if err := s.authorize(ctx, "ensure_root", scope, false); err != nil {
		return nil, err
	}
	return s.ensureRoot(ctx, "ensure_root", scope)
}

func validateCreateRequest(req *librarySvc.CreateNodeRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Kind, validation.Required, validation.In(lib.KindFolder, lib.KindFile)),
		validation.Field(&req.FileType, validation.By(func(v interface{}) error {
			if ft := v.(lib.FileType); ft != "" && !ft.Valid() {
				return fmt.Errorf("unknown file type %q", ft)
			}
			return nil
		})),
		validation.Field(&req.SizeBytes, validation.Min(int64(0))),
		validation.Field(&req.Scope, validation.When(req.ParentID == "", validation.Required.Error("parent_id or scope is required"))),
	)
}

// CreateNode creates a folder or file under a parent folder
func (s *nodeService) CreateNode(ctx context.Context, req *librarySvc.CreateNodeRequest) (*lib.Node, error) {
	const op = "create"

	if err := validateCreateRequest(req); err != nil {
		return nil, domain.NewOpError(op, "", domain.ErrValidation, "%v", err)
	}
	if req.Kind == lib.KindFolder && (req.FileType != "" || req.SizeBytes != 0 || req.ContentID != "") {
		return nil, domain.NewOpError(op, "", domain.ErrValidation, "folders cannot carry file metadata")
	}
	name, err := validateName(req.Name, s.opts.MaxNameLength)
	if err != nil {
		return nil, domain.NewOpError(op, "", domain.ErrInvalidName, "%v", err)
	}

	// Resolve the parent's scope before locking
	var scope lib.Scope
	if req.ParentID != "" {
		parent, err := s.repo.GetByID(ctx, req.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewOpError(op, "", domain.ErrInvalidParent, "parent %s does not exist", req.ParentID)
			}
			return nil, domain.WrapOpError(op, "", err)
		}
		scope = parent.Scope
	} else {
		if err := req.Scope.Validate(); err != nil {
			return nil, domain.NewOpError(op, "", domain.ErrValidation, "%v", err)
		}
		scope = *req.Scope
	}
	if err := s.authorize(ctx, op, scope, true); err != nil {
		return nil, err
	}

	node := lib.Node{
		ID:        s.newID(),
		Name:      name,
		Kind:      req.Kind,
		ContentID: req.ContentID,
		SizeBytes: req.SizeBytes,
	}
	if node.Kind == lib.KindFile {
		node.FileType = req.FileType
		if node.FileType == "" {
			node.FileType = s.detectFileType(name)
		}
		if err := s.statContent(ctx, &node); err != nil {
			return nil, domain.WrapOpError(op, "", err)
		}
	}

	charged := int64(0)
	if scope.IsPersonal() && s.quota != nil && node.SizeBytes > 0 {
		if err := s.quota.Charge(ctx, scope, node.SizeBytes); err != nil {
			return nil, domain.WrapOpError(op, "", err)
		}
		charged = node.SizeBytes
	}

	created, err := s.createLocked(ctx, req, scope, node)
	if err != nil {
		s.refundQuota(ctx, s.quota, op, scope, charged)
		return nil, err
	}

	s.logger.Info("node created",
		"id", created.ID,
		"kind", created.Kind,
		"path", created.Path,
		"scope", created.Scope.Key(),
	)

	return created, nil
}

func (s *nodeService) createLocked(ctx context.Context, req *librarySvc.CreateNodeRequest, scope lib.Scope, node lib.Node) (*lib.Node, error) {
	const op = "create"

	unlock, err := s.lock(ctx, op, scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var parent *lib.Node
	if req.ParentID != "" {
		parent, err = s.repo.GetByID(ctx, req.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewOpError(op, "", domain.ErrInvalidParent, "parent %s does not exist", req.ParentID)
			}
			return nil, domain.WrapOpError(op, "", err)
		}
		if parent.Scope.LockKey() != scope.LockKey() {
			return nil, domain.NewOpError(op, "", domain.ErrConflict, "parent %s changed scope", parent.ID)
		}
	} else {
		parent, err = s.ensureRoot(ctx, op, scope)
		if err != nil {
			return nil, err
		}
	}
	if !parent.IsFolder() {
		return nil, domain.NewOpError(op, "", domain.ErrInvalidParent, "parent %s is a file", parent.ID)
	}
	if err := checkDepth(op, "", parent, 0); err != nil {
		return nil, err
	}

	siblings, err := s.repo.ListChildren(ctx, parent.ID)
	if err != nil {
		return nil, domain.WrapOpError(op, "", err)
	}
	if other, clash := takenNames(siblings, "")[lib.NameKey(node.Name)]; clash {
		return nil, domain.NewOpError(op, "", domain.ErrNameCollision,
			"a node named %q already exists here (%s)", node.Name, other)
	}

	now := s.now()
	node.ParentID = lib.StringPtr(parent.ID)
	node.Scope = parent.Scope
	node.CanEdit = parent.CanEdit
	if req.CanEdit != nil {
		node.CanEdit = *req.CanEdit
	}
	node.CreatedAt = now
	node.UpdatedAt = now
	node = DerivePaths(parent, []lib.Node{node})[0]

	cs := &lib.ChangeSet{}
	cs.Insert(node)
	cs.Require(*parent)
	if err := s.touchRoot(ctx, cs, parent.Scope); err != nil {
		return nil, domain.WrapOpError(op, "", err)
	}
	if err := s.commit(ctx, op, "", cs); err != nil {
		return nil, err
	}

	node.Version = 1
	return &node, nil
}

func (s *nodeService) detectFileType(name string) lib.FileType {
	if s.fileTypes == nil {
		return lib.FileTypeOther
	}
	return s.fileTypes.Detect(name)
}

// statContent takes the file size from the content store when it knows the blob
func (s *nodeService) statContent(ctx context.Context, node *lib.Node) error {
	if node.ContentID == "" || s.content == nil {
		return nil
	}
	info, err := s.content.Stat(ctx, node.ContentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("content not known to store, keeping declared size",
				"content_id", node.ContentID,
				"size_bytes", node.SizeBytes,
			)
			return nil
		}
		return fmt.Errorf("stat content %s: %w", node.ContentID, err)
	}
	node.SizeBytes = info.SizeBytes
	return nil
}

// ResolveContent returns the retrievable location of a file node's bytes
func (s *nodeService) ResolveContent(ctx context.Context, id string) (*services.ContentInfo, error) {
	const op = "resolve_content"

	n, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsFolder() {
		return nil, domain.NewOpError(op, id, domain.ErrValidation, "folders have no content")
	}
	if n.ContentID == "" || s.content == nil {
		return nil, domain.NewOpError(op, id, domain.ErrNotFound, "file has no stored content")
	}

	info, err := s.content.Stat(ctx, n.ContentID)
	if err != nil {
		return nil, domain.WrapOpError(op, id, err)
	}
	return info, nil
}

// DeleteNode deletes a node and all its descendants
func (s *nodeService) DeleteNode(ctx context.Context, id string) error {
	const op = "delete"

	n, err := s.getNode(ctx, op, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, op, n.Scope, true); err != nil {
		return err
	}

	unlock, err := s.lock(ctx, op, n.Scope)
	if err != nil {
		return err
	}
	defer unlock()

	if n, err = s.getNode(ctx, op, id); err != nil {
		return err
	}
	if n.IsRoot() {
		return domain.NewOpError(op, id, domain.ErrInvalidParent, "scope roots cannot be deleted")
	}
	if !n.CanEdit {
		return domain.NewOpError(op, id, domain.ErrPermissionDenied, "node is read-only")
	}

	subtree, err := s.repo.ListSubtree(ctx, id)
	if err != nil {
		return domain.WrapOpError(op, id, err)
	}

	cs := &lib.ChangeSet{}
	for _, d := range subtree {
		if err := ctx.Err(); err != nil {
			return domain.WrapOpError(op, id, err)
		}
		cs.Delete(d)
	}
	if err := s.touchRoot(ctx, cs, n.Scope); err != nil {
		return domain.WrapOpError(op, id, err)
	}
	if err := s.commit(ctx, op, id, cs); err != nil {
		return err
	}

	if n.Scope.IsPersonal() {
		s.refundQuota(ctx, s.quota, op, n.Scope, fileBytes(subtree))
	}

	s.logger.Info("node deleted",
		"id", id,
		"path", n.Path,
		"scope", n.Scope.Key(),
		"removed", len(subtree),
	)

	return nil
}

// Rename changes a node's name and repairs descendant paths
func (s *nodeService) Rename(ctx context.Context, id string, req *librarySvc.RenameRequest) (*lib.Node, error) {
	const op = "rename"

	n, err := s.getNode(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, op, n.Scope, true); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, op, n.Scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if n, err = s.getNode(ctx, op, id); err != nil {
		return nil, err
	}
	if !n.CanEdit {
		return nil, domain.NewOpError(op, id, domain.ErrPermissionDenied, "node is read-only")
	}
	name, err := validateName(req.Name, s.opts.MaxNameLength)
	if err != nil {
		return nil, domain.NewOpError(op, id, domain.ErrInvalidName, "%v", err)
	}
	if name == n.Name {
		return n, nil
	}

	parent, err := s.getParent(ctx, op, n)
	if err != nil {
		return nil, err
	}

	cs := &lib.ChangeSet{}
	if parent != nil {
		siblings, err := s.repo.ListChildren(ctx, parent.ID)
		if err != nil {
			return nil, domain.WrapOpError(op, id, err)
		}
		if other, clash := takenNames(siblings, id)[lib.NameKey(name)]; clash {
			return nil, domain.NewOpError(op, id, domain.ErrNameCollision,
				"a node named %q already exists here (%s)", name, other)
		}
		cs.Require(*parent)
	}

	subtree, err := s.repo.ListSubtree(ctx, id)
	if err != nil {
		return nil, domain.WrapOpError(op, id, err)
	}
	subtree[0].Name = name
	subtree[0].UpdatedAt = s.now()

	derived := DerivePaths(parent, subtree)
	cs.Update(derived[0])
	for i := 1; i < len(derived); i++ {
		if pathsDiffer(&derived[i], &subtree[i]) {
			cs.Update(derived[i])
		}
	}
	if err := s.touchRoot(ctx, cs, n.Scope); err != nil {
		return nil, domain.WrapOpError(op, id, err)
	}
	if err := s.commit(ctx, op, id, cs); err != nil {
		return nil, err
	}

	renamed, _ := cs.Updated(id)
	s.logger.Info("node renamed",
		"id", id,
		"from", n.Name,
		"to", renamed.Name,
		"path", renamed.Path,
		"descendants_repaired", cs.Size()-1,
	)

	return &renamed, nil
}

// Reconcile recomputes materialized paths for a node and its descendants
func (s *nodeService) Reconcile(ctx context.Context, id string) (*lib.Node, error) {
	const op = "reconcile"

	n, err := s.getNode(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, op, n.Scope, true); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, op, n.Scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if n, err = s.getNode(ctx, op, id); err != nil {
		return nil, err
	}
	parent, err := s.getParent(ctx, op, n)
	if err != nil {
		return nil, err
	}
	subtree, err := s.repo.ListSubtree(ctx, id)
	if err != nil {
		return nil, domain.WrapOpError(op, id, err)
	}

	cs := &lib.ChangeSet{}
	derived := DerivePaths(parent, subtree)
	for i := range derived {
		if pathsDiffer(&derived[i], &subtree[i]) {
			cs.Update(derived[i])
		}
	}
	if cs.IsEmpty() {
		return n, nil
	}
	if parent != nil {
		cs.Require(*parent)
	}
	if err := s.commit(ctx, op, id, cs); err != nil {
		return nil, err
	}

	s.logger.Warn("materialized paths repaired",
		"id", id,
		"scope", n.Scope.Key(),
		"repaired", cs.Size(),
	)

	if updated, ok := cs.Updated(id); ok {
		return &updated, nil
	}
	return n, nil
}

func validateVideoRequest(req *librarySvc.VideoRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.URL, validation.Required, is.URL, validation.By(func(v interface{}) error {
			u, err := url.Parse(v.(string))
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return errors.New("must be an absolute http(s) URL")
			}
			return nil
		})),
		validation.Field(&req.Title, validation.Required, validation.Length(1, 255)),
	)
}

// AttachVideo sets the explanation video of a file node
func (s *nodeService) AttachVideo(ctx context.Context, id string, req *librarySvc.VideoRequest) (*lib.Node, error) {
	const op = "attach_video"

	if err := validateVideoRequest(req); err != nil {
		return nil, domain.NewOpError(op, id, domain.ErrValidation, "%v", err)
	}
	return s.updateVideo(ctx, op, id, &lib.ExplanationVideo{URL: req.URL, Title: req.Title})
}

// DetachVideo removes the explanation video of a file node
func (s *nodeService) DetachVideo(ctx context.Context, id string) (*lib.Node, error) {
	return s.updateVideo(ctx, "detach_video", id, nil)
}

func (s *nodeService) updateVideo(ctx context.Context, op, id string, video *lib.ExplanationVideo) (*lib.Node, error) {
	n, err := s.getNode(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, op, n.Scope, true); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, op, n.Scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if n, err = s.getNode(ctx, op, id); err != nil {
		return nil, err
	}
	if n.IsFolder() {
		return nil, domain.NewOpError(op, id, domain.ErrValidation, "explanation videos attach to files only")
	}
	if !n.CanEdit {
		return nil, domain.NewOpError(op, id, domain.ErrPermissionDenied, "node is read-only")
	}
	if video == nil && n.ExplanationVideo == nil {
		return n, nil
	}

	updated := n.Clone()
	updated.ExplanationVideo = video
	updated.UpdatedAt = s.now()

	cs := &lib.ChangeSet{}
	cs.Update(updated)
	if err := s.touchRoot(ctx, cs, n.Scope); err != nil {
		return nil, domain.WrapOpError(op, id, err)
	}
	if err := s.commit(ctx, op, id, cs); err != nil {
		return nil, err
	}

	s.logger.Info("explanation video updated",
		"id", id,
		"attached", video != nil,
	)

	result, _ := cs.Updated(id)
	return &result, nil
}
