// Package http serves the ledger over a JSON API.
//
// This file implements the builder used by every handler to produce JSON
// responses, and the mapping from ledger error codes to HTTP statuses.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
)

// Transport-level error codes, alongside the core codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL"
	CodeNotReady         = "NOT_READY"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to w.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

// ErrorResponse creates an error response with the given code and message.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Code: code, Message: message})
}

// BadRequestError creates a 400 response for malformed requests.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeInvalidRequest, message)
}

// InternalServerError creates a 500 response. The cause is never exposed.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, "Internal server error.")
}

// MethodNotAllowedError creates a 405 response listing the allowed methods.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed.").
		Header("Allow", allowedMethods)
}

// statusForCode maps a ledger error code to its HTTP status.
func statusForCode(code core.Code) int {
	switch code {
	case core.CodeEntryDuplicate:
		return http.StatusConflict
	case core.CodeAssignUnknownEntry:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// LedgerError converts err into a response. Errors carrying a ledger code
// keep their code and message; anything else is an internal error.
func LedgerError(err error) *JSONResponseBuilder {
	var le *core.Error
	if !errors.As(err, &le) {
		return InternalServerError()
	}
	return ErrorResponse(statusForCode(le.Code), string(le.Code), le.Message)
}
