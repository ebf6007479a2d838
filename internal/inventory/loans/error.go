package loans

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeForbidden             Code = "FORBIDDEN"
	CodeAssetUnavailable      Code = "ASSET_UNAVAILABLE"
	CodeTargetAlreadyAssigned Code = "TARGET_ALREADY_ASSIGNED"
	CodeTargetOfficeMismatch  Code = "TARGET_OFFICE_MISMATCH"
	CodeProfileNotLinked      Code = "PROFILE_NOT_LINKED"
	CodeAlreadyReturned       Code = "ALREADY_RETURNED"
	CodeInternal              Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError   { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError  { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrForbidden(msg string) *APIError { return &APIError{Code: CodeForbidden, Message: msg} }

func ErrAssetUnavailable(msg string) *APIError {
	return &APIError{Code: CodeAssetUnavailable, Message: msg}
}

func ErrTargetAlreadyAssigned(msg string) *APIError {
	return &APIError{Code: CodeTargetAlreadyAssigned, Message: msg}
}

func ErrTargetOfficeMismatch(msg string) *APIError {
	return &APIError{Code: CodeTargetOfficeMismatch, Message: msg}
}

func ErrProfileNotLinked(msg string) *APIError {
	return &APIError{Code: CodeProfileNotLinked, Message: msg}
}

func ErrAlreadyReturned(msg string) *APIError {
	return &APIError{Code: CodeAlreadyReturned, Message: msg}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if !errors.As(err, &api) {
		return http.StatusInternalServerError
	}
	switch api.Code {
	case CodeInvalidArgument, CodeTargetOfficeMismatch:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeAssetUnavailable, CodeTargetAlreadyAssigned, CodeAlreadyReturned, CodeProfileNotLinked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
