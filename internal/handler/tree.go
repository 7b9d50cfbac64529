package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"courseware/internal/domain/models/library"
	librarySvc "courseware/internal/domain/services/library"
	"courseware/internal/httputil"
)

// TreeResponse is the body of a tree view. Unfiltered views have exactly one
// root; filtered views are empty when nothing matches.
type TreeResponse struct {
	Scope  library.Scope          `json:"scope"`
	Filter *library.FilterOptions `json:"filter,omitempty"`
	Roots  []*library.TreeNode    `json:"roots"`
}

// TreeHandler handles HTTP requests for tree operations
type TreeHandler struct {
	treeService librarySvc.TreeService
	logger      *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(treeService librarySvc.TreeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		treeService: treeService,
		logger:      logger,
	}
}

// GetTree returns the nested tree of a course, module or personal scope,
// pruned by the q and file_type query parameters when given
// GET /api/courses/{courseId}/tree
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	opts := library.FilterOptions{
		Query:    strings.TrimSpace(query.Get("q")),
		FileType: library.FileType(strings.TrimSpace(query.Get("file_type"))),
	}

	if opts.IsEmpty() {
		tree, err := h.treeService.LoadTree(r.Context(), scope)
		if err != nil {
			handleError(w, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, TreeResponse{Scope: scope, Roots: []*library.TreeNode{tree}})
		return
	}

	roots, err := h.treeService.FilterTree(r.Context(), scope, opts)
	if err != nil {
		handleError(w, err)
		return
	}
	if roots == nil {
		roots = []*library.TreeNode{}
	}

	httputil.RespondJSON(w, http.StatusOK, TreeResponse{Scope: scope, Filter: &opts, Roots: roots})
}

// VerifyTree reports every broken structural invariant of a scope
// GET /api/courses/{courseId}/verify
func (h *TreeHandler) VerifyTree(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	report, err := h.treeService.VerifyScope(r.Context(), scope)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, report)
}

// HealthCheck is a simple health check endpoint
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
