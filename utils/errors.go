package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorKind classifies failures surfaced by public operations.
type ErrorKind string

const (
	KindValidation        ErrorKind = "ValidationError"
	KindDuplicateEntity   ErrorKind = "DuplicateEntity"
	KindNotFound          ErrorKind = "NotFound"
	KindMissingIdentifier ErrorKind = "MissingIdentifier"
	KindNotAuthenticated  ErrorKind = "NotAuthenticated"
	KindForbidden         ErrorKind = "Forbidden"
	KindBadRequest        ErrorKind = "BadRequest"
	KindPersistence       ErrorKind = "PersistenceError"
)

// ApiError is the structured error returned by services and rendered by HandleError.
type ApiError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	ErrorCode  string
	Fields     map[string]string
	Err        error
}

// Error implements error.
func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ApiError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the operation unchanged.
func (e *ApiError) Retryable() bool {
	return e.Kind == KindPersistence
}

// NewApiError builds an ApiError.
func NewApiError(kind ErrorKind, message string, statusCode int, errorCode string) *ApiError {
	return &ApiError{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		ErrorCode:  errorCode,
	}
}

// CreateValidationError reports field-level schema violations.
func CreateValidationError(fields map[string]string) *ApiError {
	err := NewApiError(KindValidation, "validation failed", http.StatusBadRequest, "VALIDATION_ERROR")
	err.Fields = fields
	return err
}

// CreateDuplicateEntityError reports a unique-field collision.
func CreateDuplicateEntityError(message string) *ApiError {
	return NewApiError(KindDuplicateEntity, message, http.StatusConflict, "DUPLICATE_ENTITY")
}

// CreateNotFoundError reports a missing resource.
func CreateNotFoundError(resource string) *ApiError {
	return NewApiError(KindNotFound, resource+" not found", http.StatusNotFound, "RESOURCE_NOT_FOUND")
}

// CreateMissingIdentifierError reports a request without the required sequence number.
func CreateMissingIdentifierError(name string) *ApiError {
	return NewApiError(KindMissingIdentifier, name+" required", http.StatusBadRequest, "MISSING_IDENTIFIER")
}

// CreateUnauthorizedError reports a missing or unknown session.
func CreateUnauthorizedError() *ApiError {
	return NewApiError(KindNotAuthenticated, "authentication required", http.StatusUnauthorized, "UNAUTHORIZED")
}

// CreateForbiddenError reports an authenticated user without the needed role.
func CreateForbiddenError() *ApiError {
	return NewApiError(KindForbidden, "insufficient permission", http.StatusForbidden, "FORBIDDEN")
}

// CreateBadRequestError reports a malformed request body or parameter.
func CreateBadRequestError(message string) *ApiError {
	return NewApiError(KindBadRequest, message, http.StatusBadRequest, "BAD_REQUEST")
}

// CreatePersistenceError wraps a storage failure. Callers may retry.
func CreatePersistenceError(message string, err error) *ApiError {
	apiErr := NewApiError(KindPersistence, message, http.StatusInternalServerError, "PERSISTENCE_ERROR")
	apiErr.Err = err
	return apiErr
}

// KindOf returns the kind of err. Errors that are not ApiErrors count as
// persistence failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindPersistence
}

// IsKind reports whether err is an ApiError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HandleError logs err and writes the matching JSON response.
func HandleError(c *gin.Context, err error) {
	if c == nil || err == nil {
		return
	}

	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		apiErr = CreatePersistenceError("internal server error", err)
	}
	_ = c.Error(err)

	event := Logger.Warn()
	if apiErr.StatusCode >= http.StatusInternalServerError {
		event = Logger.Error()
	}
	event.
		Err(err).
		Str("requestId", c.GetString(RequestIDKey)).
		Str("path", c.Request.URL.Path).
		Str("method", c.Request.Method).
		Str("kind", string(apiErr.Kind)).
		Msg("api error")

	response := gin.H{
		"success": false,
		"error":   apiErr.Message,
		"kind":    apiErr.Kind,
	}
	if apiErr.ErrorCode != "" {
		response["code"] = apiErr.ErrorCode
	}
	if len(apiErr.Fields) > 0 {
		response["fields"] = apiErr.Fields
	}
	c.AbortWithStatusJSON(apiErr.StatusCode, response)
}

// SuccessResponse writes {"success":true,"data":...,"message":...}.
func SuccessResponse(c *gin.Context, data interface{}, message string, statusCode ...int) {
	code := http.StatusOK
	if len(statusCode) > 0 {
		code = statusCode[0]
	}

	response := gin.H{"success": true}
	if data != nil {
		response["data"] = data
	}
	if message != "" {
		response["message"] = message
	}

	c.JSON(code, response)
}
