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
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/coderag/pkg/validation"
	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	"github.com/AleutianAI/coderag/services/coderag/telemetry"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	loggerKey       = "logger"

	// maxTrackedClients bounds the per-client limiter cache.
	maxTrackedClients = 4096
)

// RequestID echoes the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

// RequestLogger stores a request-scoped logger in the context and logs
// each completed request.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := telemetry.LoggerWithTrace(c.Request.Context(), base).
			With(slog.String("request_id", c.GetString(requestIDKey)))
		c.Set(loggerKey, logger)

		c.Next()

		logger.Info("request completed",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

// ProjectParam trims and validates the :project path parameter before any
// handler sees it. Invalid IDs are rejected with 400.
func ProjectParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		for i, p := range c.Params {
			if p.Key != "project" {
				continue
			}
			id, err := validation.SanitizeProjectID(p.Value)
			if err != nil {
				writeError(c, requestLogger(c, slog.Default()), fmt.Errorf("%w: %v", graphstore.ErrInvalidProject, err))
				return
			}
			c.Params[i].Value = id
		}
		c.Next()
	}
}

// BodyLimit caps request bodies at limit bytes. Zero or less disables it.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// RateLimit applies a token bucket per client IP. A non-positive rps
// disables limiting.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)

	return func(c *gin.Context) {
		client := clientKey(c)
		limiter, ok := limiters.Get(client)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			if prev, found, _ := limiters.PeekOrAdd(client, limiter); found {
				limiter = prev
			}
		}
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:     "rate limit exceeded",
				Code:      CodeRateLimited,
				RequestID: c.GetString(requestIDKey),
			})
			return
		}
		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// requestLogger returns the logger stored by RequestLogger, or fallback.
func requestLogger(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if logger, ok := v.(*slog.Logger); ok {
			return logger
		}
	}
	return fallback
}
