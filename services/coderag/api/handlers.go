// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the graph store and metrics engine over HTTP.
//
// All routes live under /v1/coderag. Project-scoped routes take the
// project ID from the path and ignore any project ID in the body. Errors
// are returned as ErrorResponse with a stable code; see statusFor for the
// mapping from store errors to HTTP statuses.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	"github.com/AleutianAI/coderag/services/coderag/metrics"
)

// DefaultSearchLimit applies when a search omits limit.
const DefaultSearchLimit = 50

// MaxSearchLimit caps the limit parameter.
const MaxSearchLimit = 1000

// Handlers serves the HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	store    *graphstore.Store
	ingestor *graphstore.Ingestor
	engine   *metrics.Engine
	logger   *slog.Logger
}

// NewHandlers creates Handlers. A nil logger uses slog.Default().
func NewHandlers(store *graphstore.Store, ingestor *graphstore.Ingestor, engine *metrics.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, ingestor: ingestor, engine: engine, logger: logger}
}

func (h *Handlers) log(c *gin.Context) *slog.Logger {
	return requestLogger(c, h.logger)
}

// HealthResponse is returned by the health and readiness checks.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// HandleReady reports whether the backing store answers.
func (h *Handlers) HandleReady(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}

// =============================================================================
// Projects
// =============================================================================

// ProjectRequest creates or updates a project.
type ProjectRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleListProjects returns every registered project.
func (h *Handlers) HandleListProjects(c *gin.Context) {
	projects, err := h.store.ListProjects(c.Request.Context())
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

// HandleCreateProject registers a project. Responds 409 if it exists.
func (h *Handlers) HandleCreateProject(c *gin.Context) {
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log(c), err)
		return
	}
	project, err := h.store.CreateProject(c.Request.Context(), &graphstore.Project{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// HandleGetProject returns one project.
func (h *Handlers) HandleGetProject(c *gin.Context) {
	project, err := h.store.GetProject(c.Request.Context(), c.Param("project"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// HandleUpdateProject changes a project's name and description.
func (h *Handlers) HandleUpdateProject(c *gin.Context) {
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log(c), err)
		return
	}
	project, err := h.store.UpdateProject(c.Request.Context(), c.Param("project"), req.Name, req.Description)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// HandleDeleteProject removes a project and all of its data.
func (h *Handlers) HandleDeleteProject(c *gin.Context) {
	h.deleted(c, "project", c.Param("project"))(h.store.DeleteProject(c.Request.Context(), c.Param("project")))
}

// HandleClearProject removes a project's nodes and edges but keeps the
// project registered.
func (h *Handlers) HandleClearProject(c *gin.Context) {
	if err := h.store.ClearProject(c.Request.Context(), c.Param("project")); err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleProjectStats counts a project's nodes and edges by type.
func (h *Handlers) HandleProjectStats(c *gin.Context) {
	stats, err := h.store.ProjectStats(c.Request.Context(), c.Param("project"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleIngest writes a batch of parser output into the project.
//
// Per-item failures are reported in the result with status 200. Request
// validation failures are 400; an unreachable store is 503.
func (h *Handlers) HandleIngest(c *gin.Context) {
	var req graphstore.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log(c), err)
		return
	}
	req.ProjectID = c.Param("project")

	result, err := h.ingestor.Ingest(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// =============================================================================
// Nodes
// =============================================================================

// HandleCreateNode adds a node to the project.
func (h *Handlers) HandleCreateNode(c *gin.Context) {
	var node graphstore.CodeNode
	if err := c.ShouldBindJSON(&node); err != nil {
		writeBindError(c, h.log(c), err)
		return
	}
	node.ProjectID = c.Param("project")

	created, err := h.store.AddNode(c.Request.Context(), &node)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// HandleGetNode returns one node.
func (h *Handlers) HandleGetNode(c *gin.Context) {
	node, err := h.store.GetNode(c.Request.Context(), c.Param("project"), c.Param("id"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// HandleUpdateNode applies a partial update. Unknown and identity fields
// are ignored; an update with no mutable field is rejected.
func (h *Handlers) HandleUpdateNode(c *gin.Context) {
	var updates graphstore.Updates
	if err := c.ShouldBindJSON(&updates); err != nil {
		writeBindError(c, h.log(c), err)
		return
	}
	node, err := h.store.UpdateNode(c.Request.Context(), c.Param("project"), c.Param("id"), updates)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// HandleDeleteNode deletes a node and its edges.
func (h *Handlers) HandleDeleteNode(c *gin.Context) {
	h.deleted(c, "node", c.Param("id"))(h.store.DeleteNode(c.Request.Context(), c.Param("project"), c.Param("id")))
}

// HandleListNodes finds nodes by exactly one of type, name, or q.
func (h *Handlers) HandleListNodes(c *gin.Context) {
	ctx := c.Request.Context()
	project := c.Param("project")

	var (
		nodes []*graphstore.CodeNode
		err   error
	)
	switch {
	case c.Query("type") != "":
		t, perr := graphstore.ParseNodeType(c.Query("type"))
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		nodes, err = h.store.FindNodesByType(ctx, project, t)
	case c.Query("name") != "":
		nodes, err = h.store.FindNodesByName(ctx, project, c.Query("name"))
	case c.Query("q") != "":
		limit, lerr := searchLimit(c)
		if lerr != nil {
			badRequest(c, lerr.Error())
			return
		}
		nodes, err = h.store.SearchNodes(ctx, project, c.Query("q"), limit)
	default:
		badRequest(c, "one of type, name or q is required")
		return
	}
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "count": len(nodes)})
}

// =============================================================================
// Edges
// =============================================================================

// HandleCreateEdge adds an edge. An implements target that does not exist
// may resolve by simple name; otherwise a missing endpoint is 422.
func (h *Handlers) HandleCreateEdge(c *gin.Context) {
	var edge graphstore.CodeEdge
	if err := c.ShouldBindJSON(&edge); err != nil {
		writeBindError(c, h.log(c), err)
		return
	}
	edge.ProjectID = c.Param("project")

	created, err := h.store.AddEdge(c.Request.Context(), &edge)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// HandleGetEdge returns one edge.
func (h *Handlers) HandleGetEdge(c *gin.Context) {
	edge, err := h.store.GetEdge(c.Request.Context(), c.Param("project"), c.Param("id"))
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

// HandleUpdateEdge applies a partial update to an edge.
func (h *Handlers) HandleUpdateEdge(c *gin.Context) {
	var updates graphstore.Updates
	if err := c.ShouldBindJSON(&updates); err != nil {
		writeBindError(c, h.log(c), err)
		return
	}
	edge, err := h.store.UpdateEdge(c.Request.Context(), c.Param("project"), c.Param("id"), updates)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

// HandleDeleteEdge deletes one edge.
func (h *Handlers) HandleDeleteEdge(c *gin.Context) {
	h.deleted(c, "edge", c.Param("id"))(h.store.DeleteEdge(c.Request.Context(), c.Param("project"), c.Param("id")))
}

// HandleListEdges finds edges by exactly one of type, source, or target.
func (h *Handlers) HandleListEdges(c *gin.Context) {
	ctx := c.Request.Context()
	project := c.Param("project")

	var (
		edges []*graphstore.CodeEdge
		err   error
	)
	switch {
	case c.Query("type") != "":
		t, perr := graphstore.ParseEdgeType(c.Query("type"))
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		edges, err = h.store.FindEdgesByType(ctx, project, t)
	case c.Query("source") != "":
		edges, err = h.store.FindEdgesBySource(ctx, project, c.Query("source"))
	case c.Query("target") != "":
		edges, err = h.store.FindEdgesByTarget(ctx, project, c.Query("target"))
	default:
		badRequest(c, "one of type, source or target is required")
		return
	}
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges, "count": len(edges)})
}

// =============================================================================
// Graph queries
// =============================================================================

// HandleCallers returns classes whose methods call ?method=.
func (h *Handlers) HandleCallers(c *gin.Context) {
	method, ok := requiredQuery(c, "method")
	if !ok {
		return
	}
	classes, err := h.store.FindClassesThatCallMethod(c.Request.Context(), c.Param("project"), method)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes, "count": len(classes)})
}

// HandleImplementations returns classes implementing ?interface=.
func (h *Handlers) HandleImplementations(c *gin.Context) {
	iface, ok := requiredQuery(c, "interface")
	if !ok {
		return
	}
	classes, err := h.store.FindClassesThatImplementInterface(c.Request.Context(), c.Param("project"), iface)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes, "count": len(classes)})
}

// HandleHierarchy returns the ancestor chain of ?class=, nearest first.
func (h *Handlers) HandleHierarchy(c *gin.Context) {
	class, ok := requiredQuery(c, "class")
	if !ok {
		return
	}
	chain, err := h.store.FindInheritanceHierarchy(c.Request.Context(), c.Param("project"), class)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ancestors": chain, "depth": len(chain)})
}

// =============================================================================
// Cross-project queries
// =============================================================================

// HandleGlobalNodes finds nodes in every project by ?type= or ?q=.
func (h *Handlers) HandleGlobalNodes(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		nodes []*graphstore.CodeNode
		err   error
	)
	switch {
	case c.Query("type") != "":
		t, perr := graphstore.ParseNodeType(c.Query("type"))
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		nodes, err = h.store.FindNodesByTypeAcrossProjects(ctx, t)
	case c.Query("q") != "":
		limit, lerr := searchLimit(c)
		if lerr != nil {
			badRequest(c, lerr.Error())
			return
		}
		nodes, err = h.store.SearchNodesAcrossProjects(ctx, c.Query("q"), limit)
	default:
		badRequest(c, "one of type or q is required")
		return
	}
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "count": len(nodes)})
}

// HandleGlobalEdges finds edges of ?type= in every project.
func (h *Handlers) HandleGlobalEdges(c *gin.Context) {
	raw, ok := requiredQuery(c, "type")
	if !ok {
		return
	}
	t, err := graphstore.ParseEdgeType(raw)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	edges, err := h.store.FindEdgesByTypeAcrossProjects(c.Request.Context(), t)
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges, "count": len(edges)})
}

// HandleCrossProjectDependencies lists edges whose endpoints live in
// different projects.
func (h *Handlers) HandleCrossProjectDependencies(c *gin.Context) {
	deps, err := h.store.FindCrossProjectDependencies(c.Request.Context())
	if err != nil {
		writeError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependencies": deps, "count": len(deps)})
}

// =============================================================================
// Helpers
// =============================================================================

// deleted returns a callback that writes 204 when the delete removed
// something and 404 when it did not.
func (h *Handlers) deleted(c *gin.Context, kind, id string) func(bool, error) {
	return func(removed bool, err error) {
		if err != nil {
			writeError(c, h.log(c), err)
			return
		}
		if !removed {
			writeError(c, h.log(c), fmt.Errorf("%w: %s %s", graphstore.ErrNotFound, kind, id))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func requiredQuery(c *gin.Context, name string) (string, bool) {
	v := c.Query(name)
	if v == "" {
		badRequest(c, fmt.Sprintf("query parameter %q is required", name))
		return "", false
	}
	return v, true
}

func searchLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return DefaultSearchLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return min(n, MaxSearchLimit), nil
}

// writeBindError reports a malformed body. Oversized bodies map to 413.
func writeBindError(c *gin.Context, logger *slog.Logger, err error) {
	status, _ := statusFor(err)
	if status == http.StatusRequestEntityTooLarge {
		writeError(c, logger, err)
		return
	}
	badRequest(c, "invalid request body: "+err.Error())
}
