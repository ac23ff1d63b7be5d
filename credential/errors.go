package credential

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vcagent/core"
)

const (
	CredentialErrorBadInput = "CREDENTIAL_BAD_INPUT"
	CredentialErrorNotFound = "CREDENTIAL_NOT_FOUND"
	CredentialErrorConflict = "CREDENTIAL_CONFLICT"
	CredentialErrorUnknown  = "CREDENTIAL_UNKNOWN_ISSUER"
	CredentialErrorInternal = "CREDENTIAL_INTERNAL_ERROR"
)

func credentialValidationError(field string, message string) error {
	return goerrors.NewValidation("credential: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(CredentialErrorBadInput)
}

func credentialInternalError(message string, cause error) error {
	if cause == nil {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(CredentialErrorInternal)
	}
	return goerrors.Wrap(cause, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(CredentialErrorInternal)
}

func credentialStorageError(err error, message string) error {
	switch {
	case errors.Is(err, core.ErrRecordNotFound):
		return goerrors.Wrap(err, goerrors.CategoryNotFound, message).
			WithCode(http.StatusNotFound).
			WithTextCode(CredentialErrorNotFound)
	case errors.Is(err, core.ErrDuplicateRecord):
		return goerrors.Wrap(err, goerrors.CategoryConflict, message).
			WithCode(http.StatusConflict).
			WithTextCode(CredentialErrorConflict)
	default:
		return goerrors.Wrap(err, goerrors.CategoryExternal, message).
			WithCode(http.StatusBadGateway).
			WithTextCode(CredentialErrorInternal)
	}
}
