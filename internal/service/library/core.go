package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"courseware/internal/config"
	"courseware/internal/domain"
	"courseware/internal/domain/models"
	lib "courseware/internal/domain/models/library"
	libraryRepo "courseware/internal/domain/repositories/library"
	"courseware/internal/domain/services"

	"github.com/google/uuid"
)

// Core holds what every library service shares: the node store, the scope
// locks, authorization and deployment options.
type Core struct {
	repo       libraryRepo.NodeRepository
	locker     *ScopeLocker
	authorizer services.ScopeAuthorizer
	opts       Options
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewCore creates the shared service state. authorizer may be nil, in which
// case every caller may view and edit every scope.
func NewCore(
	repo libraryRepo.NodeRepository,
	locker *ScopeLocker,
	authorizer services.ScopeAuthorizer,
	opts Options,
	logger *slog.Logger,
) *Core {
	if locker == nil {
		locker = NewScopeLocker()
	}
	return &Core{
		repo:       repo,
		locker:     locker,
		authorizer: authorizer,
		opts:       opts.withDefaults(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.New().String() },
	}
}

// SetClock replaces the time source (tests)
func (c *Core) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Core) authorize(ctx context.Context, op string, scope lib.Scope, edit bool) error {
	if c.authorizer == nil {
		return nil
	}
	caller, ok := models.CallerFromContext(ctx)
	if !ok {
		return domain.NewOpError(op, "", domain.ErrUnauthorized, "no authenticated caller")
	}

	var err error
	if edit {
		err = c.authorizer.CanEdit(ctx, caller, scope)
	} else {
		err = c.authorizer.CanView(ctx, caller, scope)
	}
	if err != nil {
		return domain.WrapOpError(op, "", err)
	}
	return nil
}

// lock acquires the structural locks of every given scope
func (c *Core) lock(ctx context.Context, op string, scopes ...lib.Scope) (func(), error) {
	keys := make([]string, len(scopes))
	for i, s := range scopes {
		keys[i] = s.LockKey()
	}
	unlock, err := c.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, domain.WrapOpError(op, "", err)
	}
	return unlock, nil
}

// getNode loads a node, attributing a miss to the operation
func (c *Core) getNode(ctx context.Context, op, id string) (*lib.Node, error) {
	if id == "" {
		return nil, domain.NewOpError(op, "", domain.ErrValidation, "node id is required")
	}
	n, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewOpError(op, id, domain.ErrNotFound, "node does not exist")
		}
		return nil, domain.WrapOpError(op, id, err)
	}
	return n, nil
}

// getParent loads the parent of n, or nil for scope roots
func (c *Core) getParent(ctx context.Context, op string, n *lib.Node) (*lib.Node, error) {
	if n.IsRoot() {
		return nil, nil
	}
	parent, err := c.repo.GetByID(ctx, *n.ParentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewOpError(op, n.ID, domain.ErrConflict, "parent %s disappeared", *n.ParentID)
		}
		return nil, domain.WrapOpError(op, n.ID, err)
	}
	return parent, nil
}

// ensureRoot returns the scope's root folder, creating it when missing.
// Safe without the scope lock: the store admits one root per scope, and a
// lost creation race is resolved by reading the winner's root.
func (c *Core) ensureRoot(ctx context.Context, op string, scope lib.Scope) (*lib.Node, error) {
	if err := scope.Validate(); err != nil {
		return nil, domain.NewOpError(op, "", domain.ErrValidation, "%v", err)
	}

	root, err := c.repo.GetScopeRoot(ctx, scope)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapOpError(op, "", err)
	}

	now := c.now()
	node := lib.Node{
		ID:          c.newID(),
		Name:        c.opts.RootName,
		Kind:        lib.KindFolder,
		Scope:       scope,
		CanEdit:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
		AncestorIDs: []string{},
	}
	node = DerivePaths(nil, []lib.Node{node})[0]

	cs := &lib.ChangeSet{}
	cs.Insert(node)
	if err := c.repo.Apply(ctx, cs); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, domain.WrapOpError(op, "", err)
		}
		c.logger.Debug("scope root created concurrently", "scope", scope.Key())
	} else {
		c.logger.Info("scope root created", "id", node.ID, "scope", scope.Key())
	}

	root, err = c.repo.GetScopeRoot(ctx, scope)
	if err != nil {
		return nil, domain.WrapOpError(op, "", err)
	}
	return root, nil
}

// touchRoot stages an updatedAt bump of the scope root in cs
func (c *Core) touchRoot(ctx context.Context, cs *lib.ChangeSet, scope lib.Scope) error {
	if staged, ok := c.stagedRoot(cs, scope); ok {
		staged.UpdatedAt = c.now()
		cs.Update(staged)
		return nil
	}
	root, err := c.repo.GetScopeRoot(ctx, scope)
	if err != nil {
		return fmt.Errorf("load root of %s: %w", scope, err)
	}
	root.UpdatedAt = c.now()
	cs.Update(*root)
	return nil
}

func (c *Core) stagedRoot(cs *lib.ChangeSet, scope lib.Scope) (lib.Node, bool) {
	for _, n := range cs.Updates {
		if n.IsRoot() && n.Scope.Key() == scope.Key() {
			return n, true
		}
	}
	return lib.Node{}, false
}

// commit applies a fully buffered change set
func (c *Core) commit(ctx context.Context, op, nodeID string, cs *lib.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapOpError(op, nodeID, err)
	}
	if err := c.repo.Apply(ctx, cs); err != nil {
		return domain.WrapOpError(op, nodeID, err)
	}
	return nil
}

// ancestorChain walks parent links upward from id, bounded by MaxTreeDepth.
// The chain starts at id itself.
func (c *Core) ancestorChain(ctx context.Context, op, id string) ([]string, error) {
	var chain []string
	current := id
	for depth := 0; current != ""; depth++ {
		if depth > config.MaxTreeDepth {
			return nil, domain.NewOpError(op, id, domain.ErrInvalidParent,
				"ancestor chain exceeds %d levels", config.MaxTreeDepth)
		}
		if err := ctx.Err(); err != nil {
			return nil, domain.WrapOpError(op, id, err)
		}
		n, err := c.repo.GetByID(ctx, current)
		if err != nil {
			return nil, domain.WrapOpError(op, id, err)
		}
		chain = append(chain, n.ID)
		current = n.ParentIDValue()
	}
	return chain, nil
}

// checkDepth rejects a write that would place any node of a subtree deeper
// than MaxTreeDepth once the subtree root is attached under parent.
func checkDepth(op, nodeID string, parent *lib.Node, height int) error {
	depth := len(parent.AncestorIDs) + 1 + height
	if depth > config.MaxTreeDepth {
		return domain.NewOpError(op, nodeID, domain.ErrInvalidParent,
			"tree would be %d levels deep, maximum is %d", depth, config.MaxTreeDepth)
	}
	return nil
}

// subtreeHeight is the depth of the deepest node of a root-first subtree,
// measured from its root.
func subtreeHeight(subtree []lib.Node) int {
	if len(subtree) == 0 {
		return 0
	}
	base := len(subtree[0].AncestorIDs)
	height := 0
	for _, n := range subtree {
		if h := len(n.AncestorIDs) - base; h > height {
			height = h
		}
	}
	return height
}

// refundQuota releases bytes charged before a failed or undone write.
// The refund survives cancellation of the request that charged it.
func (c *Core) refundQuota(ctx context.Context, quota services.QuotaManager, op string, scope lib.Scope, bytes int64) {
	if bytes <= 0 || quota == nil {
		return
	}
	if err := quota.Refund(context.WithoutCancel(ctx), scope, bytes); err != nil {
		c.logger.Warn("quota refund failed",
			"op", op,
			"scope", scope.Key(),
			"bytes", bytes,
			"error", err,
		)
	}
}

// fileBytes sums the sizes of the files among nodes, saturating at
// math.MaxInt64 so an oversized subtree still fails the quota check.
func fileBytes(nodes []lib.Node) int64 {
	var total int64
	for _, n := range nodes {
		if n.Kind != lib.KindFile || n.SizeBytes <= 0 {
			continue
		}
		if n.SizeBytes > math.MaxInt64-total {
			return math.MaxInt64
		}
		total += n.SizeBytes
	}
	return total
}
