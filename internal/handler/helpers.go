package handler

import (
	"errors"
	"net/http"
	"strings"

	"courseware/internal/domain"
	"courseware/internal/domain/models/library"
	"courseware/internal/httputil"

	"github.com/google/uuid"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	httputil.RespondDomainError(w, err)
}

// HandleCreateConflict handles name collisions during creation by returning the
// existing sibling with 409. fetchFn looks the sibling up; if it cannot, the
// original error is reported.
func HandleCreateConflict[T any](w http.ResponseWriter, err error, fetchFn func() (*T, error)) {
	if !errors.Is(err, domain.ErrNameCollision) {
		handleError(w, err)
		return
	}

	existing, fetchErr := fetchFn()
	if fetchErr != nil || existing == nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusConflict, existing)
}

// PathParam extracts a required path parameter, writing a 400 when it is missing
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := strings.TrimSpace(r.PathValue(name))
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// NodeIDParam extracts the {id} path parameter and checks it is a UUID
func NodeIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := PathParam(w, r, "id", "Node ID")
	if !ok {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid node ID format")
		return "", false
	}
	return id, true
}

// scopeFromRequest builds the scope named by {courseId} and the
// module_id/trainee_id query parameters
func scopeFromRequest(w http.ResponseWriter, r *http.Request) (library.Scope, bool) {
	courseID, ok := PathParam(w, r, "courseId", "Course ID")
	if !ok {
		return library.Scope{}, false
	}

	query := r.URL.Query()
	scope := library.Scope{
		CourseID:  courseID,
		ModuleID:  strings.TrimSpace(query.Get("module_id")),
		TraineeID: strings.TrimSpace(query.Get("trainee_id")),
	}
	if err := scope.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return library.Scope{}, false
	}
	return scope, true
}

// findSibling returns the child whose name equals name case-insensitively
func findSibling(children []library.Node, name string) (*library.Node, error) {
	name = strings.TrimSpace(name)
	for i := range children {
		if library.SameName(children[i].Name, name) {
			return &children[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
