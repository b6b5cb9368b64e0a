package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrConflict           ErrorCode = "CONFLICT"
	ErrBadRequest         ErrorCode = "BAD_REQUEST"
	ErrInvalidInput       ErrorCode = "VALIDATION_ERROR"
	ErrInvalidAmount      ErrorCode = "INVALID_AMOUNT"
	ErrAccountNotEligible ErrorCode = "ACCOUNT_NOT_ELIGIBLE"
	ErrInsufficientFunds  ErrorCode = "INSUFFICIENT_FUNDS"
	ErrRecipientNotFound  ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrSelfTransfer       ErrorCode = "SELF_TRANSFER_REJECTED"
	ErrDuplicateReference ErrorCode = "DUPLICATE_REFERENCE"
	ErrRemoteWrite        ErrorCode = "REMOTE_WRITE_FAILURE"
	ErrPartialTransfer    ErrorCode = "PARTIAL_TRANSFER_FAILURE"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Is reports whether err is an APIError carrying the given code.
func Is(err error, code ErrorCode) bool {
	apiErr, ok := err.(APIError)
	return ok && apiErr.Code == code
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound, ErrRecipientNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrDuplicateReference:
			return http.StatusConflict
		case ErrInvalidInput, ErrInvalidAmount, ErrBadRequest, ErrSelfTransfer:
			return http.StatusBadRequest
		case ErrAccountNotEligible, ErrInsufficientFunds:
			return http.StatusUnprocessableEntity
		case ErrUnauthorized:
			return http.StatusUnauthorized
		case ErrRemoteWrite, ErrPartialTransfer, ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
