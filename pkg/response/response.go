// Package response writes the JSON envelopes returned by every endpoint.
package response

import (
	"errors"
	"net/http"
	"time"

	"purposepay/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// retryAfter is advertised on 429 and 503 answers unless the caller
// already set a more precise value.
const retryAfter = "1"

// SuccessResponse wraps a payload. Meta is only present on list endpoints.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	Meta      *ListMeta   `json:"meta,omitempty"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

type ListMeta struct {
	Count int `json:"count"`
}

// ErrorResponse carries the stable error code and kind of an AppError.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, data, nil)
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, data, nil)
}

// List sends items with their count. A nil slice is rendered as [].
func List[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	write(c, http.StatusOK, items, &ListMeta{Count: len(items)})
}

// Error renders err. Anything that is not an *apperror.AppError becomes an
// opaque SYS_000 so internal messages never reach the client.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.New("SYS_000", apperror.KindInternal, "Internal server error", http.StatusInternalServerError)
	}

	switch appErr.HTTPStatus {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		if c.Writer.Header().Get("Retry-After") == "" {
			c.Header("Retry-After", retryAfter)
		}
	}

	requestID, ts := stamp(c)
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Kind:      string(appErr.Kind),
		Message:   appErr.Message,
		RequestID: requestID,
		Timestamp: ts,
	})
}

func write(c *gin.Context, status int, data interface{}, meta *ListMeta) {
	requestID, ts := stamp(c)
	c.JSON(status, SuccessResponse{
		Data:      data,
		Meta:      meta,
		RequestID: requestID,
		Timestamp: ts,
	})
}

// stamp returns the request id set by the RequestID middleware, or a fresh
// one when the handler runs without it, and the current UTC time.
func stamp(c *gin.Context) (string, string) {
	requestID := c.GetString(RequestIDKey)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return requestID, time.Now().UTC().Format(time.RFC3339)
}
