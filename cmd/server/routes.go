package main

import (
	"net/http"

	"courseware/internal/handler"
)

// newRouter registers every library route (Go 1.22+ enhanced patterns)
func newRouter(nodes *handler.NodeHandler, trees *handler.TreeHandler) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Course tree views
	mux.HandleFunc("GET /api/courses/{courseId}/tree", trees.GetTree)
	mux.HandleFunc("GET /api/courses/{courseId}/verify", trees.VerifyTree)

	// Node routes
	mux.HandleFunc("POST /api/nodes", nodes.CreateNode)
	mux.HandleFunc("GET /api/nodes/{id}", nodes.GetNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", nodes.DeleteNode)
	mux.HandleFunc("GET /api/nodes/{id}/children", nodes.ListChildren)
	mux.HandleFunc("GET /api/nodes/{id}/content", nodes.GetContent)

	// Structural operations
	mux.HandleFunc("POST /api/nodes/{id}/rename", nodes.Rename)
	mux.HandleFunc("POST /api/nodes/{id}/copy", nodes.Copy)
	mux.HandleFunc("POST /api/nodes/{id}/move", nodes.Move)
	mux.HandleFunc("POST /api/nodes/{id}/reconcile", nodes.Reconcile)

	// Explanation videos
	mux.HandleFunc("PUT /api/nodes/{id}/explanation-video", nodes.AttachVideo)
	mux.HandleFunc("DELETE /api/nodes/{id}/explanation-video", nodes.DetachVideo)

	return mux
}
