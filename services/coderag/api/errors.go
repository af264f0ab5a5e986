// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	"github.com/AleutianAI/coderag/services/coderag/metrics"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidUpdate    = "INVALID_UPDATE"
	CodeNotFound         = "NOT_FOUND"
	CodeEndpointNotFound = "ENDPOINT_NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeWriteConflict    = "WRITE_CONFLICT"
	CodeUnavailable      = "STORE_UNAVAILABLE"
	CodeTimeout          = "TIMEOUT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeBodyTooLarge     = "BODY_TOO_LARGE"
	CodeInternal         = "INTERNAL"
)

// statusFor maps a store or engine error to an HTTP status and code.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, graphstore.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, graphstore.ErrInvalidUpdate):
		return http.StatusBadRequest, CodeInvalidUpdate
	case errors.Is(err, graphstore.ErrEndpointNotFound):
		return http.StatusUnprocessableEntity, CodeEndpointNotFound
	case errors.Is(err, graphstore.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, graphstore.ErrWriteConflict):
		return http.StatusServiceUnavailable, CodeWriteConflict
	case errors.Is(err, graphstore.ErrConnectivity):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, graphstore.ErrInvalidNode),
		errors.Is(err, graphstore.ErrInvalidEdge),
		errors.Is(err, graphstore.ErrInvalidProject),
		errors.Is(err, graphstore.ErrInvalidRequest),
		errors.Is(err, metrics.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, CodeBodyTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeError logs err and writes the mapped error response. Server-side
// failures are logged at error level, client mistakes at debug.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("code", code), slog.String("error", err.Error()))
	} else {
		logger.Debug("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: c.GetString(requestIDKey),
	})
}

// badRequest writes a 400 with a message of the handler's choosing.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:     msg,
		Code:      CodeInvalidRequest,
		RequestID: c.GetString(requestIDKey),
	})
}
