// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for API responses: JSON bodies,
// binary downloads and the error envelope shared by every endpoint.

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	contentType string
	payload     any
	body        []byte
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the body, encoded when the response is written.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.contentType = "application/json; charset=utf-8"
	b.payload = v
	b.body = nil
	return b
}

// Body sets a raw body with its media type.
func (b *ResponseBuilder) Body(contentType string, content []byte) *ResponseBuilder {
	b.contentType = contentType
	b.payload = nil
	b.body = content
	return b
}

// Attachment marks the body as a download named filename.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// Write sends the built response. An unencodable payload turns into a 500
// before anything reaches the client.
func (b *ResponseBuilder) Write(w http.ResponseWriter) error {
	body := b.body
	status := b.statusCode
	contentType := b.contentType

	if b.payload != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(b.payload); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return err
		}
		body = buf.Bytes()
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if len(body) > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}

	w.WriteHeader(status)
	if len(body) > 0 {
		_, err := w.Write(body)
		return err
	}
	return nil
}

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message, requestID string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(ErrorBody{Error: message, RequestID: requestID})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message, requestID string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, requestID)
}

// BadGatewayError creates a 502 response for a failed upstream store.
func BadGatewayError(message, requestID string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadGateway, message, requestID)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message, requestID string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message, requestID)
}

// ServiceUnavailableError creates a 503 response.
func ServiceUnavailableError(message, requestID string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message, requestID)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError(requestID string) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later", requestID)
}
