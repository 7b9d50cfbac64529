package library

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"courseware/internal/config"
	"courseware/internal/domain"
	models "courseware/internal/domain/models/library"
	"courseware/internal/domain/repositories"
	libraryRepo "courseware/internal/domain/repositories/library"
	"courseware/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const nodeColumns = `n.id, n.parent_id, n.name, n.kind, n.file_type, n.size_bytes, n.content_id,
	n.path, n.ancestor_ids, n.course_id, n.module_id, n.trainee_id, n.can_edit,
	n.video_url, n.video_title, n.version, n.created_at, n.updated_at`

// PostgresNodeRepository implements the NodeRepository interface
type PostgresNodeRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	tx     repositories.TransactionManager
	logger *slog.Logger
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(config *postgres.RepositoryConfig) libraryRepo.NodeRepository {
	return &PostgresNodeRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     postgres.NewTransactionManager(config.Pool, config.Logger),
		logger: config.Logger,
	}
}

// GetByID retrieves a node by ID
func (r *PostgresNodeRepository) GetByID(ctx context.Context, id string) (*models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s n WHERE n.id = $1`, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	n, err := scanNode(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// ListChildren lists the immediate children of a folder, ordered by name
func (r *PostgresNodeRepository) ListChildren(ctx context.Context, parentID string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s n
		WHERE n.parent_id = $1
		ORDER BY n.name_key, n.id
	`, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return collectNodes(rows)
}

// ListSubtree returns the node followed by its descendants in depth-first order
func (r *PostgresNodeRepository) ListSubtree(ctx context.Context, rootID string) ([]models.Node, error) {
	nodes, err := r.walk(ctx, "n.id = $1", rootID)
	if err != nil {
		return nil, fmt.Errorf("list subtree: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("node %s: %w", rootID, domain.ErrNotFound)
	}
	return nodes, nil
}

// GetScopeRoot returns the root folder of a scope
func (r *PostgresNodeRepository) GetScopeRoot(ctx context.Context, scope models.Scope) (*models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s n
		WHERE n.scope_key = $1 AND n.parent_id IS NULL
	`, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	n, err := scanNode(executor.QueryRow(ctx, query, scope.Key()))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("root of %s: %w", scope, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get scope root: %w", err)
	}
	return n, nil
}

// ListByScope returns every node reachable from the scope root, parents first
func (r *PostgresNodeRepository) ListByScope(ctx context.Context, scope models.Scope) ([]models.Node, error) {
	nodes, err := r.walk(ctx, "n.scope_key = $1 AND n.parent_id IS NULL", scope.Key())
	if err != nil {
		return nil, fmt.Errorf("list scope: %w", err)
	}
	return nodes, nil
}

// walk runs a depth-first traversal from the rows matched by start.
// Siblings are visited in name order; depth is bounded by MaxTreeDepth.
func (r *PostgresNodeRepository) walk(ctx context.Context, start string, arg any) ([]models.Node, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE dfs AS (
			-- Base case: the starting node
			SELECT n.id, ARRAY[n.name_key, n.id] AS sort_path, 0 AS depth
			FROM %s n
			WHERE %s

			UNION ALL

			-- Recursive case: children, carrying the parent's sort path
			SELECT c.id, dfs.sort_path || ARRAY[c.name_key, c.id], dfs.depth + 1
			FROM %s c
			INNER JOIN dfs ON c.parent_id = dfs.id
			WHERE dfs.depth < $2
		)
		SELECT %s
		FROM dfs
		INNER JOIN %s n ON n.id = dfs.id
		ORDER BY dfs.sort_path
	`, r.tables.Nodes, start, r.tables.Nodes, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, arg, config.MaxTreeDepth)
	if err != nil {
		return nil, err
	}
	return collectNodes(rows)
}

// Apply commits a change set in one transaction. Expected versions are
// checked under row locks; constraint violations surface as conflicts.
func (r *PostgresNodeRepository) Apply(ctx context.Context, cs *models.ChangeSet) error {
	if cs == nil || cs.IsEmpty() {
		return nil
	}

	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := r.checkVersions(ctx, cs.Expect); err != nil {
			return err
		}
		if err := r.writeChanges(ctx, cs); err != nil {
			return err
		}
		return r.checkParents(ctx, cs)
	})
	if err != nil {
		if postgres.IsPgConstraintError(err) {
			r.logger.Debug("change set rejected by constraint",
				"constraint", postgres.ConstraintName(err),
				"error", err,
			)
			return fmt.Errorf("apply change set: %s: %w", postgres.ConstraintName(err), domain.ErrConflict)
		}
		return err
	}

	r.logger.Debug("change set applied",
		"inserts", len(cs.Inserts),
		"updates", len(cs.Updates),
		"deletes", len(cs.Deletes),
	)
	return nil
}

// checkVersions locks every expected row and compares its version
func (r *PostgresNodeRepository) checkVersions(ctx context.Context, expect map[string]int64) error {
	if len(expect) == 0 {
		return nil
	}

	ids := make([]string, 0, len(expect))
	for id := range expect {
		ids = append(ids, id)
	}
	// Stable lock order across concurrent change sets
	sort.Strings(ids)

	query := fmt.Sprintf(`
		SELECT id, version FROM %s
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("lock nodes: %w", err)
	}
	defer rows.Close()

	current := make(map[string]int64, len(ids))
	for rows.Next() {
		var id string
		var version int64
		if err := rows.Scan(&id, &version); err != nil {
			return fmt.Errorf("scan version: %w", err)
		}
		current[id] = version
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock nodes: %w", err)
	}

	for _, id := range ids {
		version, ok := current[id]
		if !ok {
			return fmt.Errorf("node %s no longer exists: %w", id, domain.ErrConflict)
		}
		if version != expect[id] {
			return fmt.Errorf("node %s changed (version %d, expected %d): %w",
				id, version, expect[id], domain.ErrConflict)
		}
	}
	return nil
}

// writeChanges sends every delete, update and insert in one batch
func (r *PostgresNodeRepository) writeChanges(ctx context.Context, cs *models.ChangeSet) error {
	batch := &pgx.Batch{}

	if len(cs.Deletes) > 0 {
		batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, r.tables.Nodes), cs.Deletes)
	}

	update := fmt.Sprintf(`
		UPDATE %s SET
			parent_id = $2, name = $3, name_key = $4, kind = $5, file_type = $6,
			size_bytes = $7, content_id = $8, path = $9, ancestor_ids = $10,
			course_id = $11, module_id = $12, trainee_id = $13, scope_key = $14,
			can_edit = $15, video_url = $16, video_title = $17, version = $18,
			created_at = $19, updated_at = $20
		WHERE id = $1
	`, r.tables.Nodes)
	for _, n := range cs.Updates {
		batch.Queue(update, nodeArgs(n)...)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (
			id, parent_id, name, name_key, kind, file_type, size_bytes, content_id,
			path, ancestor_ids, course_id, module_id, trainee_id, scope_key,
			can_edit, video_url, video_title, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, r.tables.Nodes)
	for _, n := range cs.Inserts {
		batch.Queue(insert, nodeArgs(n)...)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	results := executor.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("write change set: %w", err)
		}
		if tag.Update() && tag.RowsAffected() == 0 {
			return fmt.Errorf("updated node vanished: %w", domain.ErrConflict)
		}
	}
	return nil
}

// checkParents rejects written nodes whose parent is a file.
// Missing parents are caught by the deferred foreign key at commit.
func (r *PostgresNodeRepository) checkParents(ctx context.Context, cs *models.ChangeSet) error {
	ids := make([]string, 0, len(cs.Inserts)+len(cs.Updates))
	for _, n := range cs.Inserts {
		ids = append(ids, n.ID)
	}
	for _, n := range cs.Updates {
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		SELECT c.id, p.id FROM %s c
		INNER JOIN %s p ON p.id = c.parent_id
		WHERE c.id = ANY($1) AND p.kind <> 'folder'
		LIMIT 1
	`, r.tables.Nodes, r.tables.Nodes)

	var childID, parentID string
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, ids).Scan(&childID, &parentID)
	if err == nil {
		return fmt.Errorf("node %s: parent %s is a file: %w", childID, parentID, domain.ErrConflict)
	}
	if postgres.IsPgNoRowsError(err) {
		return nil
	}
	return fmt.Errorf("check parents: %w", err)
}

// nodeArgs lists the column values of n in insert/update parameter order
func nodeArgs(n models.Node) []any {
	var videoURL, videoTitle *string
	if n.ExplanationVideo != nil {
		videoURL = &n.ExplanationVideo.URL
		videoTitle = &n.ExplanationVideo.Title
	}
	ancestors := n.AncestorIDs
	if ancestors == nil {
		ancestors = []string{}
	}

	return []any{
		n.ID,
		n.ParentID,
		n.Name,
		models.NameKey(n.Name),
		string(n.Kind),
		string(n.FileType),
		n.SizeBytes,
		n.ContentID,
		n.Path,
		ancestors,
		n.Scope.CourseID,
		n.Scope.ModuleID,
		n.Scope.TraineeID,
		n.Scope.Key(),
		n.CanEdit,
		videoURL,
		videoTitle,
		n.Version,
		n.CreatedAt,
		n.UpdatedAt,
	}
}

func scanNode(row pgx.Row) (*models.Node, error) {
	var (
		n                    models.Node
		kind, fileType       string
		videoURL, videoTitle *string
	)
	err := row.Scan(
		&n.ID,
		&n.ParentID,
		&n.Name,
		&kind,
		&fileType,
		&n.SizeBytes,
		&n.ContentID,
		&n.Path,
		&n.AncestorIDs,
		&n.Scope.CourseID,
		&n.Scope.ModuleID,
		&n.Scope.TraineeID,
		&n.CanEdit,
		&videoURL,
		&videoTitle,
		&n.Version,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Kind = models.Kind(kind)
	n.FileType = models.FileType(fileType)
	if videoURL != nil {
		n.ExplanationVideo = &models.ExplanationVideo{URL: *videoURL}
		if videoTitle != nil {
			n.ExplanationVideo.Title = *videoTitle
		}
	}
	if n.AncestorIDs == nil {
		n.AncestorIDs = []string{}
	}
	return &n, nil
}

func collectNodes(rows pgx.Rows) ([]models.Node, error) {
	defer rows.Close()

	nodes := []models.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}
