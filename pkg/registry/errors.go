// Package registry defines the ports the registry services depend on: the
// asset repository and the event store, together with their query types and
// the error taxonomy shared across the module.
package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelpark/registry/pkg/asset"
)

// Kind classifies a registry error for programmatic handling.
type Kind string

const (
	// KindNotFound means the asset or record does not exist.
	KindNotFound Kind = "not_found"
	// KindAlreadyExists means a (name, version) pair is already registered.
	KindAlreadyExists Kind = "already_exists"
	// KindValidationFailed means the asset failed structural validation.
	KindValidationFailed Kind = "validation_failed"
	// KindChecksumFailed means a content digest did not match.
	KindChecksumFailed Kind = "checksum_verification_failed"
	// KindCircularDependency means an operation would create a cycle.
	KindCircularDependency Kind = "circular_dependency"
	// KindDependencyNotFound means a declared dependency does not resolve.
	KindDependencyNotFound Kind = "dependency_not_found"
	// KindVersionConflict means a version constraint could not be satisfied.
	KindVersionConflict Kind = "version_conflict"
	// KindPolicyFailed means a named policy rejected the asset.
	KindPolicyFailed Kind = "policy_validation_failed"
	// KindInvalidInput means the request itself was malformed.
	KindInvalidInput Kind = "invalid_input"
	// KindNotPermitted means the operation is blocked by registry rules.
	KindNotPermitted Kind = "not_permitted"
	// KindDatabase means the storage layer failed.
	KindDatabase Kind = "database"
	// KindInternal is the catch-all for unexpected failures.
	KindInternal Kind = "internal"
)

// Error is the module-wide error type. It carries a Kind for dispatch plus
// optional structured detail for the kinds that have one.
type Error struct {
	Kind    Kind
	Message string

	// Name and Version are set for KindAlreadyExists and KindVersionConflict.
	Name    string
	Version string
	// Policy is set for KindPolicyFailed.
	Policy string
	// Cycle is set for KindCircularDependency, in edge order.
	Cycle []asset.ID

	cause error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is makes errors.Is match on Kind, so sentinel-style comparisons work:
// errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the Kind of an error, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsKind reports whether the error carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists builds a KindAlreadyExists error for a (name, version) pair.
func AlreadyExists(name, version string) *Error {
	return &Error{
		Kind:    KindAlreadyExists,
		Message: fmt.Sprintf("asset %s@%s is already registered", name, version),
		Name:    name,
		Version: version,
	}
}

// ValidationFailed builds a KindValidationFailed error.
func ValidationFailed(format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// ChecksumFailed builds a KindChecksumFailed error.
func ChecksumFailed(expected, actual string) *Error {
	return &Error{
		Kind:    KindChecksumFailed,
		Message: fmt.Sprintf("checksum mismatch: expected %s, got %s", expected, actual),
	}
}

// CircularDependency builds a KindCircularDependency error carrying the
// detected cycle in edge order.
func CircularDependency(cycle []asset.ID) *Error {
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		parts[i] = id.String()
	}
	return &Error{
		Kind:    KindCircularDependency,
		Message: fmt.Sprintf("circular dependency detected: %s", strings.Join(parts, " -> ")),
		Cycle:   cycle,
	}
}

// DependencyNotFound builds a KindDependencyNotFound error.
func DependencyNotFound(ref string) *Error {
	return &Error{
		Kind:    KindDependencyNotFound,
		Message: fmt.Sprintf("dependency %s not found", ref),
	}
}

// VersionConflict builds a KindVersionConflict error.
func VersionConflict(name, version string) *Error {
	return &Error{
		Kind:    KindVersionConflict,
		Message: fmt.Sprintf("version %s of %s conflicts with an existing registration", version, name),
		Name:    name,
		Version: version,
	}
}

// PolicyFailed builds a KindPolicyFailed error for a named policy.
func PolicyFailed(policy, message string) *Error {
	return &Error{
		Kind:    KindPolicyFailed,
		Message: fmt.Sprintf("policy %s failed: %s", policy, message),
		Policy:  policy,
	}
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NotPermitted builds a KindNotPermitted error.
func NotPermitted(format string, args ...any) *Error {
	return &Error{Kind: KindNotPermitted, Message: fmt.Sprintf(format, args...)}
}

// DatabaseError wraps a storage failure.
func DatabaseError(op string, cause error) *Error {
	return &Error{
		Kind:    KindDatabase,
		Message: fmt.Sprintf("%s: %v", op, cause),
		cause:   cause,
	}
}

// Internal wraps an unexpected failure.
func Internal(op string, cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: fmt.Sprintf("%s: %v", op, cause),
		cause:   cause,
	}
}

// HTTPStatus maps an error kind to the REST status code the API returns.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists, KindVersionConflict:
		return http.StatusConflict
	case KindValidationFailed, KindCircularDependency, KindDependencyNotFound,
		KindChecksumFailed, KindPolicyFailed:
		return http.StatusUnprocessableEntity
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotPermitted:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
