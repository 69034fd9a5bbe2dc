package errors

import (
	"errors"
	"fmt"
)

// Domain error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState indicates an invalid state transition or operation
	ErrInvalidState = errors.New("invalid state")

	// ErrConcurrency indicates a concurrency conflict (optimistic locking)
	ErrConcurrency = errors.New("concurrency conflict")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrGraphCycle indicates a cycle detected in graph
	ErrGraphCycle = errors.New("cycle detected in graph")

	// ErrMaxIterations indicates max iterations exceeded in loop
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrCompose indicates a manifest/composition failure (fatal, session never starts)
	ErrCompose = errors.New("composition failed")

	// ErrWorkerSpawn indicates a worker process failed to launch
	ErrWorkerSpawn = errors.New("worker spawn failed")

	// ErrWorkerRuntime indicates a worker reported a BlockError during a firing
	ErrWorkerRuntime = errors.New("worker runtime error")

	// ErrJobTimeout indicates a firing exceeded its timeout
	ErrJobTimeout = errors.New("job timed out")

	// ErrIPC indicates a framing or decode failure, or an unexpected socket close
	ErrIPC = errors.New("ipc error")

	// ErrCache indicates a cache load/save failure (non-fatal)
	ErrCache = errors.New("cache error")

	// ErrCancelled indicates the operation was aborted by session cancellation
	ErrCancelled = errors.New("operation cancelled")
)

// Kind classifies an error per the error handling design: which of these
// seven the caller is looking at decides whether it is fatal to the
// session, fatal to one job, or recoverable.
type Kind string

const (
	KindCompose      Kind = "compose"
	KindWorkerSpawn  Kind = "worker_spawn"
	KindWorkerRuntime Kind = "worker_runtime"
	KindTimeout      Kind = "timeout"
	KindIPC          Kind = "ipc"
	KindCache        Kind = "cache"
	KindCancellation Kind = "cancellation"
)

// ComposeError reports a fatal composition-time failure: manifest not
// found, parse failure, unresolved block, or a violated runtime graph
// invariant. The session never starts.
func ComposeError(reason string, err error) *DomainError {
	return NewDomainError("COMPOSE_ERROR", reason, err).WithDetails("kind", string(KindCompose))
}

// WorkerSpawnError reports that launching a worker process failed.
func WorkerSpawnError(blockID string, err error) *DomainError {
	return NewDomainError("WORKER_SPAWN_ERROR", "failed to spawn worker", err).
		WithDetails("kind", string(KindWorkerSpawn)).WithDetails("block_id", blockID)
}

// WorkerRuntimeError reports a BlockError the worker itself raised.
func WorkerRuntimeError(nodeID string, payload interface{}) *DomainError {
	return NewDomainError("WORKER_RUNTIME_ERROR", "worker reported an error", ErrWorkerRuntime).
		WithDetails("kind", string(KindWorkerRuntime)).WithDetails("node_id", nodeID).WithDetails("payload", payload)
}

// TimeoutError reports a firing that exceeded its node timeout. This
// is handled as a WorkerRuntimeError.
func TimeoutError(nodeID string, timeoutSeconds int) *DomainError {
	return NewDomainError("TIMEOUT_ERROR", "job exceeded its timeout", ErrJobTimeout).
		WithDetails("kind", string(KindTimeout)).WithDetails("node_id", nodeID).WithDetails("timeout_seconds", timeoutSeconds)
}

// IpcError reports a framing/decode failure or an unexpected disconnect.
func IpcError(reason string, err error) *DomainError {
	return NewDomainError("IPC_ERROR", reason, err).WithDetails("kind", string(KindIPC))
}

// CacheError reports a non-fatal cache load/save failure; callers log and
// continue without the cache.
func CacheError(reason string, err error) *DomainError {
	return NewDomainError("CACHE_ERROR", reason, err).WithDetails("kind", string(KindCache))
}

// CancellationError reports that an operation was aborted by session
// cancellation. This is an expected terminal state, not logged as an error.
func CancellationError(reason string) *DomainError {
	return NewDomainError("CANCELLED", reason, ErrCancelled).WithDetails("kind", string(KindCancellation))
}

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds details to a domain error
func (e *DomainError) WithDetails(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// Helper functions for common error scenarios

// NotFound creates a not found error
func NotFound(resource, id string) *DomainError {
	return NewDomainError(
		"NOT_FOUND",
		fmt.Sprintf("%s not found", resource),
		ErrNotFound,
	).WithDetails("resource", resource).WithDetails("id", id)
}

// AlreadyExists creates an already exists error
func AlreadyExists(resource, id string) *DomainError {
	return NewDomainError(
		"ALREADY_EXISTS",
		fmt.Sprintf("%s already exists", resource),
		ErrAlreadyExists,
	).WithDetails("resource", resource).WithDetails("id", id)
}

// InvalidInput creates an invalid input error
func InvalidInput(field, reason string) *DomainError {
	return NewDomainError(
		"INVALID_INPUT",
		fmt.Sprintf("invalid input for field %s", field),
		ErrInvalidInput,
	).WithDetails("field", field).WithDetails("reason", reason)
}

// InvalidState creates an invalid state error
func InvalidState(current, attempted string) *DomainError {
	return NewDomainError(
		"INVALID_STATE",
		fmt.Sprintf("cannot perform operation in state %s", current),
		ErrInvalidState,
	).WithDetails("current_state", current).WithDetails("attempted_operation", attempted)
}

// Internal creates an internal error
func Internal(message string, err error) *DomainError {
	return NewDomainError("INTERNAL_ERROR", message, err)
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
