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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/coderag/services/coderag/config"
	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	"github.com/AleutianAI/coderag/services/coderag/metrics"
	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *graphstore.Store
	db     *storage.DB
}

func newTestServer(t *testing.T, mutate ...func(*config.ServerConfig)) *testServer {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := graphstore.New(db, graphstore.WithLogger(logger))
	engine, err := metrics.NewEngine(store, metrics.DefaultConfig(), metrics.WithLogger(logger))
	require.NoError(t, err)

	cfg := config.DefaultConfig().Server
	cfg.RateLimit = 0
	for _, m := range mutate {
		m(&cfg)
	}
	h := NewHandlers(store, graphstore.NewIngestor(store, graphstore.DefaultIngestOptions()), engine, logger)
	return &testServer{t: t, router: NewRouter(h, cfg, "coderag-test", logger), store: store, db: db}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func nodeBody(id, t string) map[string]any {
	return map[string]any{
		"id":             id,
		"type":           t,
		"name":           graphstore.SimpleName(id),
		"qualified_name": id,
		"source_file":    "src/A.java",
		"start_line":     1,
		"end_line":       20,
	}
}

const base = "/v1/coderag"

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, base+"/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, base+"/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, s.db.Close())
	w = s.do(http.MethodGet, base+"/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProjects(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, base+"/projects", ProjectRequest{ID: "alpha", Description: "first"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[graphstore.Project](t, w)
	assert.Equal(t, "alpha", p.Name)

	w = s.do(http.MethodPost, base+"/projects", ProjectRequest{ID: "alpha"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConflict, decode[ErrorResponse](t, w).Code)

	w = s.do(http.MethodPost, base+"/projects", ProjectRequest{ID: "bad id!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, base+"/projects/alpha", ProjectRequest{Name: "Alpha"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alpha", decode[graphstore.Project](t, w).Name)

	w = s.do(http.MethodGet, base+"/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodDelete, base+"/projects/alpha", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, base+"/projects/alpha", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, base+"/projects/alpha", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectParam(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, base+"/projects", ProjectRequest{ID: "shop"}).Code)

	w := s.do(http.MethodGet, base+"/projects/%20shop%20", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "shop", decode[graphstore.Project](t, w).ID)

	w = s.do(http.MethodGet, base+"/projects/bad%21id/stats", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)
}

func TestNodes(t *testing.T) {
	s := newTestServer(t)
	p := base + "/projects/p1"

	w := s.do(http.MethodPost, p+"/nodes", nodeBody("com.example.Foo", "class"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "p1", decode[graphstore.CodeNode](t, w).ProjectID)

	w = s.do(http.MethodPost, p+"/nodes", nodeBody("com.example.Foo", "class"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, p+"/nodes", nodeBody("com.example.Bad", "widget"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, p+"/nodes/com.example.Foo", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPatch, p+"/nodes/com.example.Foo", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidUpdate, decode[ErrorResponse](t, w).Code)

	w = s.do(http.MethodPatch, p+"/nodes/com.example.Foo", map[string]any{"id": "other", "end_line": 42})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[graphstore.CodeNode](t, w)
	assert.Equal(t, "com.example.Foo", updated.ID)
	assert.Equal(t, 42, updated.EndLine)

	w = s.do(http.MethodGet, p+"/nodes?type=class", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, p+"/nodes?q=example&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, p+"/nodes?limit=5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, p+"/nodes?q=x&limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Another project does not see the node; the global search does.
	w = s.do(http.MethodGet, base+"/projects/p2/nodes/com.example.Foo", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, base+"/nodes?type=class", nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodDelete, p+"/nodes/com.example.Foo", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, p+"/nodes/com.example.Foo", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNodes_EscapedID(t *testing.T) {
	s := newTestServer(t)
	p := base + "/projects/p1"
	id := "src/util.go#Parse"

	w := s.do(http.MethodPost, p+"/nodes", nodeBody(id, "function"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, p+"/nodes/"+url.PathEscape(id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, id, decode[graphstore.CodeNode](t, w).ID)
}

func TestEdges_Fallback(t *testing.T) {
	s := newTestServer(t)
	p := base + "/projects/p1"
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, p+"/nodes", nodeBody("com.example.Foo", "interface")).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, p+"/nodes", nodeBody("com.example.Bar", "class")).Code)

	w := s.do(http.MethodPost, p+"/edges", map[string]any{
		"id": "e1", "type": "implements", "source": "com.example.Bar", "target": "other.pkg.Foo",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "com.example.Foo", decode[graphstore.CodeEdge](t, w).Target)

	w = s.do(http.MethodPost, p+"/edges", map[string]any{
		"id": "e2", "type": "calls", "source": "com.example.Bar", "target": "other.pkg.Foo",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeEndpointNotFound, decode[ErrorResponse](t, w).Code)

	w = s.do(http.MethodGet, p+"/edges?source=com.example.Bar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, p+"/implementations?interface=Foo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, p+"/implementations", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, p+"/edges/e1", map[string]any{"attributes": map[string]any{"weight": 2}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodDelete, p+"/edges/e1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, p+"/edges/e1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestAndMetrics(t *testing.T) {
	s := newTestServer(t)
	p := base + "/projects/shop"

	entities := []map[string]any{
		nodeBody("com.shop.Base", "class"),
		nodeBody("com.shop.Base.run", "method"),
		nodeBody("com.shop.Cart", "class"),
	}
	relationships := []map[string]any{
		{"type": "contains", "source": "com.shop.Base", "target": "com.shop.Base.run"},
		{"type": "extends", "source": "com.shop.Cart", "target": "com.shop.Base"},
		{"type": "calls", "source": "com.shop.Missing", "target": "com.shop.Base.run"},
	}
	w := s.do(http.MethodPost, p+"/ingest", map[string]any{
		"entities":      entities,
		"relationships": relationships,
		"parse_errors":  []map[string]any{{"file": "Broken.java", "message": "syntax", "severity": "error"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[graphstore.IngestResult](t, w)
	assert.Equal(t, 3, result.EntitiesCreated)
	assert.Equal(t, 1, result.PackagesCreated)
	assert.Equal(t, 4, result.RelationshipsCreated) // two given plus two package containment edges
	assert.Len(t, result.Failures, 1)
	assert.Len(t, result.ParseErrors, 1)

	w = s.do(http.MethodGet, p+"/hierarchy?class=Cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["depth"])

	w = s.do(http.MethodGet, p+"/metrics/classes/com.shop.Cart", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	a := decode[metrics.ClassAssessment](t, w)
	assert.Equal(t, 1, a.Metrics.DIT)
	assert.True(t, a.Healthy)

	w = s.do(http.MethodGet, p+"/metrics/classes/Nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, p+"/metrics/packages/com.shop", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[metrics.PackageAssessment](t, w).Metrics.Classes)

	w = s.do(http.MethodGet, p+"/metrics/issues", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["count"])

	w = s.do(http.MethodGet, p+"/metrics/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[metrics.ProjectSummary](t, w)
	assert.Equal(t, 2, summary.ClassCount)
	assert.Equal(t, "Excellent", summary.Grade)

	w = s.do(http.MethodGet, p+"/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decode[graphstore.ProjectStats](t, w).NodeCount)

	w = s.do(http.MethodPost, p+"/ingest", `{"entities": [`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestID_Echoed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, base+"/projects/none", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", decode[ErrorResponse](t, w).RequestID)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) {
		c.RateLimit = 0.001
		c.RateBurst = 2
	})
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base+"/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base+"/health", nil).Code)

	w := s.do(http.MethodGet, base+"/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, CodeRateLimited, decode[ErrorResponse](t, w).Code)
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.ServerConfig) { c.MaxBodyBytes = 64 })
	body := nodeBody("com.example.WithAVeryLongIdentifierThatOverflowsTheLimit", "class")
	w := s.do(http.MethodPost, base+"/projects/p1/nodes", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{graphstore.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("wrapped: %w", graphstore.ErrInvalidUpdate), http.StatusBadRequest, CodeInvalidUpdate},
		{graphstore.ErrEndpointNotFound, http.StatusUnprocessableEntity, CodeEndpointNotFound},
		{graphstore.ErrConflict, http.StatusConflict, CodeConflict},
		{fmt.Errorf("wrap: %w", graphstore.ErrWriteConflict), http.StatusServiceUnavailable, CodeWriteConflict},
		{graphstore.ErrConnectivity, http.StatusServiceUnavailable, CodeUnavailable},
		{metrics.ErrInvalidInput, http.StatusBadRequest, CodeInvalidRequest},
		{graphstore.ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
