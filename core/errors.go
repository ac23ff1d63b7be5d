package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AgentErrorNoProvider           = "AGENT_NO_PROVIDER"
	AgentErrorAlreadyBound         = "AGENT_ALREADY_BOUND"
	AgentErrorDeadReference        = "AGENT_DEAD_REFERENCE"
	AgentErrorResolutionFailure    = "AGENT_RESOLUTION_FAILURE"
	AgentErrorTypeMismatch         = "AGENT_TYPE_MISMATCH"
	AgentErrorMisuse               = "AGENT_MISUSE"
	AgentErrorBackendTransaction   = "AGENT_BACKEND_TRANSACTION"
	AgentErrorInvalidConfiguration = "AGENT_INVALID_CONFIGURATION"
	AgentErrorFactoryRegistration  = "AGENT_FACTORY_REGISTRATION"
	AgentErrorRecordNotFound       = "AGENT_RECORD_NOT_FOUND"
	AgentErrorDuplicateRecord      = "AGENT_DUPLICATE_RECORD"
	AgentErrorInternal             = "AGENT_INTERNAL_ERROR"
)

// Error kinds. Every error produced by this package matches exactly one of
// them through errors.Is.
var (
	ErrNoProvider           = errors.New("core: no provider bound")
	ErrAlreadyBound         = errors.New("core: capability already bound")
	ErrDeadReference        = errors.New("core: referenced object no longer exists")
	ErrResolutionFailure    = errors.New("core: resolution failed")
	ErrTypeMismatch         = errors.New("core: type mismatch")
	ErrMisuse               = errors.New("core: session misuse")
	ErrBackendTransaction   = errors.New("core: backend transaction failed")
	ErrInvalidConfiguration = errors.New("core: invalid configuration")
	ErrFactoryRegistration  = errors.New("core: factory registration failed")
)

// Storage level facts shared by every backend.
var (
	ErrRecordNotFound  = errors.New("core: storage record not found")
	ErrDuplicateRecord = errors.New("core: storage record already exists")
)

type Error struct {
	Kind       error
	Capability string
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("core: error")
	}
	if e.Capability != "" {
		b.WriteString(" [")
		b.WriteString(e.Capability)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func (e *Error) ToServiceError() *goerrors.Error {
	if e == nil {
		return nil
	}
	category, textCode := classifyKind(e.Kind)
	err := goerrors.New(e.Error(), category).
		WithCode(agentHTTPStatus(category)).
		WithTextCode(textCode)
	if e.Capability != "" {
		err.WithMetadata(map[string]any{"capability": e.Capability})
	}
	return err
}

// NewError builds a core error of the given kind for use by backends and
// services plugged into the core.
func NewError(kind error, capability string, message string, cause error) *Error {
	return newError(kind, capability, message, cause)
}

func newError(kind error, capability string, message string, cause error) *Error {
	return &Error{
		Kind:       kind,
		Capability: capability,
		Message:    message,
		Cause:      cause,
	}
}

// MapError converts any error into the go-errors envelope used by upper
// layers.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.ToServiceError()
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAgentErrorEnvelope(richErr)
	}
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return goerrors.New(err.Error(), goerrors.CategoryNotFound).
			WithCode(http.StatusNotFound).
			WithTextCode(AgentErrorRecordNotFound)
	case errors.Is(err, ErrDuplicateRecord):
		return goerrors.New(err.Error(), goerrors.CategoryConflict).
			WithCode(http.StatusConflict).
			WithTextCode(AgentErrorDuplicateRecord)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAgentErrorEnvelope(mapped)
}

func ensureAgentErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = agentHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = AgentErrorInternal
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func classifyKind(kind error) (goerrors.Category, string) {
	switch kind {
	case ErrNoProvider:
		return goerrors.CategoryNotFound, AgentErrorNoProvider
	case ErrAlreadyBound:
		return goerrors.CategoryConflict, AgentErrorAlreadyBound
	case ErrDeadReference:
		return goerrors.CategoryInternal, AgentErrorDeadReference
	case ErrResolutionFailure:
		return goerrors.CategoryInternal, AgentErrorResolutionFailure
	case ErrTypeMismatch:
		return goerrors.CategoryValidation, AgentErrorTypeMismatch
	case ErrMisuse:
		return goerrors.CategoryOperation, AgentErrorMisuse
	case ErrBackendTransaction:
		return goerrors.CategoryExternal, AgentErrorBackendTransaction
	case ErrInvalidConfiguration:
		return goerrors.CategoryBadInput, AgentErrorInvalidConfiguration
	case ErrFactoryRegistration:
		return goerrors.CategoryConflict, AgentErrorFactoryRegistration
	default:
		return goerrors.CategoryInternal, AgentErrorInternal
	}
}

func agentHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
