package handler

import (
	"log/slog"
	"net/http"

	"courseware/internal/domain/models/library"
	librarySvc "courseware/internal/domain/services/library"
	"courseware/internal/httputil"
)

// NodeHandler handles node HTTP requests
// Follows Clean Architecture: handlers only communicate with services, never repositories
type NodeHandler struct {
	nodeService librarySvc.NodeService
	copyService librarySvc.CopyService
	moveService librarySvc.MoveService
	logger      *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	nodeService librarySvc.NodeService,
	copyService librarySvc.CopyService,
	moveService librarySvc.MoveService,
	logger *slog.Logger,
) *NodeHandler {
	return &NodeHandler{
		nodeService: nodeService,
		copyService: copyService,
		moveService: moveService,
		logger:      logger,
	}
}

// GetNode retrieves a single node by ID
// GET /api/nodes/{id}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	node, err := h.nodeService.GetNode(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// ListChildren lists the immediate children of a folder
// GET /api/nodes/{id}/children
func (h *NodeHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	children, err := h.nodeService.ListChildren(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, children)
}

// CreateNode creates a folder or file
// POST /api/nodes
// Returns 201 if created, 409 with the existing sibling if the name is taken
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req librarySvc.CreateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.nodeService.CreateNode(r.Context(), &req)
	if err != nil {
		HandleCreateConflict(w, err, func() (*library.Node, error) {
			parentID := req.ParentID
			if parentID == "" {
				root, err := h.nodeService.EnsureScopeRoot(r.Context(), *req.Scope)
				if err != nil {
					return nil, err
				}
				parentID = root.ID
			}
			children, err := h.nodeService.ListChildren(r.Context(), parentID)
			if err != nil {
				return nil, err
			}
			return findSibling(children, req.Name)
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// DeleteNode deletes a node and its subtree
// DELETE /api/nodes/{id}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	if err := h.nodeService.DeleteNode(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Rename renames a node
// POST /api/nodes/{id}/rename
func (h *NodeHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	var req librarySvc.RenameRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.nodeService.Rename(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// Copy deep-copies a node's subtree into a course, module or personal scope
// POST /api/nodes/{id}/copy
func (h *NodeHandler) Copy(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	var dest librarySvc.CopyDestination
	if err := httputil.ParseJSON(w, r, &dest); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	clone, err := h.copyService.Copy(r.Context(), id, &dest)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, clone)
}

// Move reparents a node under another folder
// POST /api/nodes/{id}/move
func (h *NodeHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	var dest librarySvc.MoveDestination
	if err := httputil.ParseJSON(w, r, &dest); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.moveService.Move(r.Context(), id, &dest)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// Reconcile recomputes the materialized paths under a node
// POST /api/nodes/{id}/reconcile
func (h *NodeHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	node, err := h.nodeService.Reconcile(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// AttachVideo sets a file's explanation video
// PUT /api/nodes/{id}/explanation-video
func (h *NodeHandler) AttachVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	var req librarySvc.VideoRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.nodeService.AttachVideo(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// DetachVideo removes a file's explanation video
// DELETE /api/nodes/{id}/explanation-video
func (h *NodeHandler) DetachVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	node, err := h.nodeService.DetachVideo(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// GetContent resolves where a file's bytes can be downloaded from
// GET /api/nodes/{id}/content
func (h *NodeHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := NodeIDParam(w, r)
	if !ok {
		return
	}

	info, err := h.nodeService.ResolveContent(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, info)
}
