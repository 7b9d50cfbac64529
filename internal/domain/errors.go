package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Error kinds. Use with errors.Is().
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidParent    = errors.New("invalid parent")
	ErrNameCollision    = errors.New("name collision")
	ErrInvalidName      = errors.New("invalid name")
	ErrPermissionDenied = errors.New("permission denied")
	ErrCyclicMove       = errors.New("cyclic move")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrConflict         = errors.New("concurrent modification")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrCancelled        = errors.New("cancelled")
)

// OperationError identifies which operation failed, on which node, and why.
// errors.Is(err, domain.ErrXxx) matches the Kind.
type OperationError struct {
	Op     string // rename, copy, move, create, delete, attach_video, ...
	NodeID string // node the operation was addressed to (may be empty for create)
	Kind   error  // one of the Err* sentinels above
	Detail string // human-readable, safe to show to the caller
	Err    error  // underlying cause, if any
}

// Error implements the error interface
func (e *OperationError) Error() string {
	msg := e.Op
	if e.NodeID != "" {
		msg += " " + e.NodeID
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is allows errors.Is() to match against the error kind
func (e *OperationError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unwrap exposes the underlying cause
func (e *OperationError) Unwrap() error {
	return e.Err
}

// StatusCode implements the HTTPError interface
func (e *OperationError) StatusCode() int {
	return StatusForKind(e.Kind)
}

// NewOpError builds an OperationError with a formatted detail message.
func NewOpError(op, nodeID string, kind error, format string, args ...any) *OperationError {
	return &OperationError{
		Op:     op,
		NodeID: nodeID,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	}
}

// WrapOpError attributes an error returned by a lower layer to an operation.
// If err already carries an OperationError it is returned unchanged.
func WrapOpError(op, nodeID string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op, NodeID: nodeID, Kind: KindOf(err), Err: err}
}

// KindOf returns the sentinel kind carried by err, or nil when err has no known kind.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidParent,
		ErrNameCollision,
		ErrInvalidName,
		ErrPermissionDenied,
		ErrCyclicMove,
		ErrQuotaExceeded,
		ErrConflict,
		ErrValidation,
		ErrUnauthorized,
		ErrCancelled,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	return nil
}

// StatusForKind maps an error kind to an HTTP status code
func StatusForKind(kind error) int {
	switch kind {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidParent, ErrInvalidName, ErrValidation, ErrCyclicMove:
		return http.StatusBadRequest
	case ErrNameCollision, ErrConflict:
		return http.StatusConflict
	case ErrPermissionDenied:
		return http.StatusForbidden
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrQuotaExceeded:
		return http.StatusInsufficientStorage
	case ErrCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// KindName returns the stable machine-readable name of an error kind.
func KindName(kind error) string {
	switch kind {
	case ErrNotFound:
		return "not_found"
	case ErrInvalidParent:
		return "invalid_parent"
	case ErrNameCollision:
		return "name_collision"
	case ErrInvalidName:
		return "invalid_name"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrCyclicMove:
		return "cyclic_move"
	case ErrQuotaExceeded:
		return "quota_exceeded"
	case ErrConflict:
		return "conflict"
	case ErrValidation:
		return "validation"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}
