package wallet

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vcagent/core"
)

const (
	WalletErrorBadInput = "WALLET_BAD_INPUT"
	WalletErrorNotFound = "WALLET_NOT_FOUND"
	WalletErrorConflict = "WALLET_CONFLICT"
	WalletErrorInternal = "WALLET_INTERNAL_ERROR"
)

func walletValidationError(field string, message string) error {
	return goerrors.NewValidation("wallet: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(WalletErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func walletDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(WalletErrorInternal)
}

func walletInternalError(message string, cause error) error {
	if cause == nil {
		return walletDependencyError(message)
	}
	return goerrors.Wrap(cause, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(WalletErrorInternal)
}

// walletStorageError keeps the storage sentinel reachable through errors.Is.
func walletStorageError(err error, message string) error {
	switch {
	case errors.Is(err, core.ErrRecordNotFound):
		return goerrors.Wrap(err, goerrors.CategoryNotFound, message).
			WithCode(http.StatusNotFound).
			WithTextCode(WalletErrorNotFound)
	case errors.Is(err, core.ErrDuplicateRecord):
		return goerrors.Wrap(err, goerrors.CategoryConflict, message).
			WithCode(http.StatusConflict).
			WithTextCode(WalletErrorConflict)
	default:
		return goerrors.Wrap(err, goerrors.CategoryExternal, message).
			WithCode(http.StatusBadGateway).
			WithTextCode(WalletErrorInternal)
	}
}
