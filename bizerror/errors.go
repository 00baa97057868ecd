package bizerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrNotFound      = errors.New("record not found")
	ErrConfigMissing = errors.New("no active workflow for the collection")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("not permitted to act on this item")
	ErrInvalidState  = errors.New("invalid state")

	ErrActiveRunExists      = fmt.Errorf("%w: an active workflow run already exists for the document", ErrConflict)
	ErrCollectionGoverned   = fmt.Errorf("%w: the collection already has a workflow", ErrConflict)
	ErrWorkflowIsReferenced = fmt.Errorf("%w: workflow is referenced by active runs", ErrConflict)
	ErrDelegationNotAllowed = fmt.Errorf("%w: delegation is not allowed at this stage", ErrInvalidState)
	ErrTriggerNotEnabled    = fmt.Errorf("%w: trigger is not enabled for the workflow", ErrInvalidState)
)

type Kind string

const (
	KindBadParam        Kind = "bad_param"
	KindNotFound        Kind = "not_found"
	KindConfigMissing   Kind = "config_missing"
	KindConflict        Kind = "conflict"
	KindUnauthorized    Kind = "unauthorized"
	KindInvalidState    Kind = "invalid_state"
	KindStoreFailure    Kind = "store_failure"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindInternal        Kind = "internal"
)

// KindOf classifies err so that callers branch on the kind rather than on messages.
func KindOf(err error) Kind {
	var badParam *ErrBadParam
	var storeFailure *ErrStoreFailure
	switch {
	case err == nil:
		return ""
	case errors.As(err, &badParam):
		return KindBadParam
	case errors.As(err, &storeFailure):
		return KindStoreFailure
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfigMissing):
		return KindConfigMissing
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	}
	return KindInternal
}

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrStoreFailure wraps an item store I/O error. The engine never retries it.
type ErrStoreFailure struct {
	Op    string
	Cause error
}

func NewStoreFailure(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var existing *ErrStoreFailure
	if errors.As(cause, &existing) {
		return cause
	}
	return &ErrStoreFailure{Op: op, Cause: cause}
}

func (e *ErrStoreFailure) Unwrap() error {
	return e.Cause
}
func (e *ErrStoreFailure) Error() string {
	if e.Cause == nil {
		return "store failure: " + e.Op
	}
	return "store failure: " + e.Op + ": " + e.Cause.Error()
}
func (e *ErrStoreFailure) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusInternalServerError, Code: "common.store_failure", Message: e.Error(), Cause: e.Cause}
}
