package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorCode classifies failures for clients and logs.
type ErrorCode string

const (
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeConfigMissing    ErrorCode = "CONFIG_MISSING"
	ErrCodeUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeRateLimit        ErrorCode = "RATE_LIMIT"
)

// APIError is written as {"error": Message, "details": Details, "code": Code}.
// Message is shown to users by the Mini App as is.
type APIError struct {
	Status  int
	Code    ErrorCode
	Message string
	Details string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newError(status int, code ErrorCode, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func (e *APIError) withDetails(err error) *APIError {
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusMethodNotAllowed:
		return ErrCodeMethodNotAllowed
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case status >= 500:
		return ErrCodeInternal
	default:
		return ErrCodeInvalidRequest
	}
}

func methodNotAllowed(message string) *APIError {
	return newError(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, message)
}

func badRequest(message string) *APIError {
	return newError(http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

// writeError logs server side failures and writes the JSON body.
func writeError(c *gin.Context, e *APIError) {
	reqID := middleware.GetReqID(c.Request.Context())
	if e.Status >= 500 {
		log.Printf("api: %s %s [%s] %d %s: %s (details: %s)", c.Request.Method, c.Request.URL.Path, reqID, e.Status, e.Code, e.Message, e.Details)
	}

	body := gin.H{
		"error": e.Message,
		"code":  e.Code,
	}
	if e.Details != "" {
		body["details"] = e.Details
	}
	if reqID != "" {
		body["requestId"] = reqID
	}
	c.AbortWithStatusJSON(e.Status, body)
}
