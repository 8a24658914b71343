package response

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Serializable is implemented by errors that contribute their own fields to
// the serialized error body
type Serializable interface {
	ToSerializable() map[string]any
}

// StatusCoder is implemented by errors that carry an HTTP status
type StatusCoder interface {
	StatusCode() int
}

// Named is implemented by errors that expose a stable name. The name keys the
// configured error overrides.
type Named interface {
	ErrorName() string
}

// Stacker is implemented by errors that captured a stack trace
type Stacker interface {
	Stack() string
}

// HTTPError is an error with an HTTP status. Payload fields are merged into the
// serialized body.
type HTTPError struct {
	Status  int
	Name    string
	Message string
	Payload map[string]any

	stack string
}

// NewHTTPError creates an HTTPError and captures the current stack
func NewHTTPError(status int, message string) *HTTPError {
	return newHTTPError(status, "HTTPError", message)
}

func newHTTPError(status int, name, message string) *HTTPError {
	return &HTTPError{
		Status:  status,
		Name:    name,
		Message: message,
		stack:   string(debug.Stack()),
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status of the error
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// ErrorName returns the error name
func (e *HTTPError) ErrorName() string {
	return e.Name
}

// Stack returns the stack captured at construction
func (e *HTTPError) Stack() string {
	return e.stack
}

// WithPayload attaches extra fields to the serialized error
func (e *HTTPError) WithPayload(payload map[string]any) *HTTPError {
	e.Payload = payload
	return e
}

// ToSerializable returns the status, the error code and the payload fields
func (e *HTTPError) ToSerializable() map[string]any {
	out := map[string]any{
		"status": e.Status,
		"code":   errorCodeFromStatus(e.Status),
	}
	for k, v := range e.Payload {
		out[k] = v
	}
	return out
}

// BadRequest creates a 400 error
func BadRequest(message string) *HTTPError {
	return newHTTPError(http.StatusBadRequest, "BadRequestError", message)
}

// Unauthorized creates a 401 error
func Unauthorized(message string) *HTTPError {
	if message == "" {
		message = "Authentication required"
	}
	return newHTTPError(http.StatusUnauthorized, "UnauthorizedError", message)
}

// Forbidden creates a 403 error
func Forbidden(message string) *HTTPError {
	if message == "" {
		message = "Access denied"
	}
	return newHTTPError(http.StatusForbidden, "ForbiddenError", message)
}

// NotFound creates a 404 error
func NotFound(message string) *HTTPError {
	if message == "" {
		message = "Resource not found"
	}
	return newHTTPError(http.StatusNotFound, "NotFoundError", message)
}

// MethodNotAllowed creates a 405 error
func MethodNotAllowed(message string) *HTTPError {
	if message == "" {
		message = "Method not allowed"
	}
	return newHTTPError(http.StatusMethodNotAllowed, "MethodNotAllowedError", message)
}

// NotAcceptable creates a 406 error
func NotAcceptable(message string) *HTTPError {
	return newHTTPError(http.StatusNotAcceptable, "NotAcceptableError", message)
}

// Conflict creates a 409 error
func Conflict(message string) *HTTPError {
	return newHTTPError(http.StatusConflict, "ConflictError", message)
}

// PayloadTooLarge creates a 413 error
func PayloadTooLarge(message string) *HTTPError {
	if message == "" {
		message = "Request entity too large"
	}
	return newHTTPError(http.StatusRequestEntityTooLarge, "PayloadTooLargeError", message)
}

// TooManyRequests creates a 429 error
func TooManyRequests(message string) *HTTPError {
	if message == "" {
		message = "Too many requests"
	}
	return newHTTPError(http.StatusTooManyRequests, "TooManyRequestsError", message)
}

// UnsupportedMediaType creates a 415 error
func UnsupportedMediaType(message string) *HTTPError {
	return newHTTPError(http.StatusUnsupportedMediaType, "UnsupportedMediaTypeError", message)
}

// InternalServerError creates a 500 error
func InternalServerError(message string) *HTTPError {
	if message == "" {
		message = "Internal server error"
	}
	return newHTTPError(http.StatusInternalServerError, "InternalServerError", message)
}

// InvalidParamError reports a parameter whose value could not be converted to its declared kind
type InvalidParamError struct {
	*HTTPError
	Param  string
	Value  any
	Target string
}

// NewInvalidParamError creates an InvalidParamError
func NewInvalidParamError(param string, value any, target string) *InvalidParamError {
	msg := fmt.Sprintf("Given parameter %s is invalid. Value (%v) cannot be parsed into %s.", param, value, target)
	return &InvalidParamError{
		HTTPError: newHTTPError(http.StatusBadRequest, "InvalidParamError", msg),
		Param:     param,
		Value:     value,
		Target:    target,
	}
}

// ToSerializable adds the parameter details to the base fields
func (e *InvalidParamError) ToSerializable() map[string]any {
	out := e.HTTPError.ToSerializable()
	out["param"] = e.Param
	out["target"] = e.Target
	return out
}

// MalformedParamError reports a structured parameter that failed to parse
type MalformedParamError struct {
	*HTTPError
	Param string
	Value string
	Err   error
}

// NewMalformedParamError creates a MalformedParamError
func NewMalformedParamError(param, value string, err error) *MalformedParamError {
	msg := fmt.Sprintf("Given parameter %s is invalid. Value (%s) cannot be parsed into JSON.", param, value)
	return &MalformedParamError{
		HTTPError: newHTTPError(http.StatusBadRequest, "MalformedParamError", msg),
		Param:     param,
		Value:     value,
		Err:       err,
	}
}

// Unwrap returns the parse error
func (e *MalformedParamError) Unwrap() error {
	return e.Err
}

// ToSerializable adds the parameter name to the base fields
func (e *MalformedParamError) ToSerializable() map[string]any {
	out := e.HTTPError.ToSerializable()
	out["param"] = e.Param
	return out
}

// StatusOf returns the HTTP status carried by err, or 500
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code < 600 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// NameOf returns the name of err; errors without one are named "Error"
func NameOf(err error) string {
	var n Named
	if errors.As(err, &n) && n.ErrorName() != "" {
		return n.ErrorName()
	}
	return "Error"
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusNotAcceptable:
		return "not_acceptable"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "gone"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusNotImplemented:
		return "not_implemented"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}
