package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorCode is the machine-readable error kind reported by the tracking server.
type ErrorCode string

const (
	ResourceDoesNotExist  ErrorCode = "RESOURCE_DOES_NOT_EXIST"
	ResourceAlreadyExists ErrorCode = "RESOURCE_ALREADY_EXISTS"
	InvalidParameterValue ErrorCode = "INVALID_PARAMETER_VALUE"
	InvalidState          ErrorCode = "INVALID_STATE"
	InternalError         ErrorCode = "INTERNAL_ERROR"
)

// Sentinels to be matched with errors.Is against an ErrorMessage.
var (
	ErrResourceDoesNotExist  = ErrorMessage{ErrorCode: ResourceDoesNotExist}
	ErrResourceAlreadyExists = ErrorMessage{ErrorCode: ResourceAlreadyExists}
	ErrInvalidParameterValue = ErrorMessage{ErrorCode: InvalidParameterValue}
	ErrInvalidState          = ErrorMessage{ErrorCode: InvalidState}
)

// ErrorMessage is the error payload of the tracking/registry REST API.
//
//	{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "Registered Model with name=foo not found"}
type ErrorMessage struct {
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
}

func (em *ErrorMessage) UnmarshalJSON(bytes []byte) error {
	f := new(struct {
		ErrorCode *ErrorCode `json:"error_code"`
		Message   *string    `json:"message"`
	})
	if err := json.Unmarshal(bytes, f); err != nil {
		return err
	}

	if f.ErrorCode == nil {
		return fmt.Errorf(`required field missing: "error_code"`)
	}
	em.ErrorCode = *f.ErrorCode

	if f.Message != nil {
		em.Message = *f.Message
	}
	return nil
}

// MarshalJSON is implemented so that echo's error handler writes the payload as is.
func (em ErrorMessage) MarshalJSON() ([]byte, error) {
	type plain ErrorMessage
	return json.Marshal(plain(em))
}

func (em ErrorMessage) Error() string {
	if em.Message == "" {
		return string(em.ErrorCode)
	}
	return fmt.Sprintf("%s: %s", em.ErrorCode, em.Message)
}

// Is reports whether target is an ErrorMessage with the same error code.
//
// Messages are not compared, so the package level sentinels match any message.
func (em ErrorMessage) Is(target error) bool {
	switch t := target.(type) {
	case ErrorMessage:
		return em.ErrorCode == t.ErrorCode
	case *ErrorMessage:
		return t != nil && em.ErrorCode == t.ErrorCode
	}
	return false
}

// StatusCode returns HTTP status code which the server responds with for the code.
func (c ErrorCode) StatusCode() int {
	switch c {
	case ResourceDoesNotExist:
		return http.StatusNotFound
	case ResourceAlreadyExists, InvalidParameterValue, InvalidState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func NewErrorMessage(code ErrorCode, format string, a ...any) *echo.HTTPError {
	msg := ErrorMessage{ErrorCode: code, Message: fmt.Sprintf(format, a...)}
	return echo.NewHTTPError(code.StatusCode(), msg).SetInternal(msg)
}

func NotFound(format string, a ...any) *echo.HTTPError {
	return NewErrorMessage(ResourceDoesNotExist, format, a...)
}

func AlreadyExists(format string, a ...any) *echo.HTTPError {
	return NewErrorMessage(ResourceAlreadyExists, format, a...)
}

func BadRequest(format string, a ...any) *echo.HTTPError {
	return NewErrorMessage(InvalidParameterValue, format, a...)
}

func Conflict(format string, a ...any) *echo.HTTPError {
	return NewErrorMessage(InvalidState, format, a...)
}

func InternalServerError(err error) *echo.HTTPError {
	msg := ErrorMessage{ErrorCode: InternalError, Message: err.Error()}
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(err)
}
