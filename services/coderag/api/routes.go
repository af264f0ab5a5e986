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
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/coderag/services/coderag/config"
	"github.com/AleutianAI/coderag/services/coderag/telemetry"
)

// RegisterRoutes registers the /coderag routes on rg.
//
// Description:
//
//	Health:
//
//	  GET    /coderag/health
//	  GET    /coderag/ready
//
//	Projects:
//
//	  GET    /coderag/projects
//	  POST   /coderag/projects
//	  GET    /coderag/projects/:project
//	  PATCH  /coderag/projects/:project
//	  DELETE /coderag/projects/:project
//	  POST   /coderag/projects/:project/clear
//	  GET    /coderag/projects/:project/stats
//	  POST   /coderag/projects/:project/ingest
//
//	Graph (project scoped):
//
//	  GET    /coderag/projects/:project/nodes?type=|name=|q=&limit=
//	  POST   /coderag/projects/:project/nodes
//	  GET    /coderag/projects/:project/nodes/:id
//	  PATCH  /coderag/projects/:project/nodes/:id
//	  DELETE /coderag/projects/:project/nodes/:id
//	  GET    /coderag/projects/:project/edges?type=|source=|target=
//	  POST   /coderag/projects/:project/edges
//	  GET    /coderag/projects/:project/edges/:id
//	  PATCH  /coderag/projects/:project/edges/:id
//	  DELETE /coderag/projects/:project/edges/:id
//	  GET    /coderag/projects/:project/callers?method=
//	  GET    /coderag/projects/:project/implementations?interface=
//	  GET    /coderag/projects/:project/hierarchy?class=
//
//	Metrics:
//
//	  GET    /coderag/projects/:project/metrics/classes/:class
//	  GET    /coderag/projects/:project/metrics/packages/:package
//	  GET    /coderag/projects/:project/metrics/issues
//	  GET    /coderag/projects/:project/metrics/summary
//
//	Cross-project:
//
//	  GET    /coderag/nodes?type=|q=
//	  GET    /coderag/edges?type=
//	  GET    /coderag/dependencies
//
//	IDs containing "/" must be path-escaped. Project IDs are trimmed and
//	validated before routing to a handler.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	coderag := rg.Group("/coderag")
	{
		coderag.GET("/health", h.HandleHealth)
		coderag.GET("/ready", h.HandleReady)

		coderag.GET("/projects", h.HandleListProjects)
		coderag.POST("/projects", h.HandleCreateProject)

		coderag.GET("/nodes", h.HandleGlobalNodes)
		coderag.GET("/edges", h.HandleGlobalEdges)
		coderag.GET("/dependencies", h.HandleCrossProjectDependencies)
	}

	project := coderag.Group("/projects/:project", ProjectParam())
	{
		project.GET("", h.HandleGetProject)
		project.PATCH("", h.HandleUpdateProject)
		project.DELETE("", h.HandleDeleteProject)
		project.POST("/clear", h.HandleClearProject)
		project.GET("/stats", h.HandleProjectStats)
		project.POST("/ingest", h.HandleIngest)

		project.GET("/nodes", h.HandleListNodes)
		project.POST("/nodes", h.HandleCreateNode)
		project.GET("/nodes/:id", h.HandleGetNode)
		project.PATCH("/nodes/:id", h.HandleUpdateNode)
		project.DELETE("/nodes/:id", h.HandleDeleteNode)

		project.GET("/edges", h.HandleListEdges)
		project.POST("/edges", h.HandleCreateEdge)
		project.GET("/edges/:id", h.HandleGetEdge)
		project.PATCH("/edges/:id", h.HandleUpdateEdge)
		project.DELETE("/edges/:id", h.HandleDeleteEdge)

		project.GET("/callers", h.HandleCallers)
		project.GET("/implementations", h.HandleImplementations)
		project.GET("/hierarchy", h.HandleHierarchy)

		project.GET("/metrics/classes/:class", h.HandleClassMetrics)
		project.GET("/metrics/packages/:package", h.HandlePackageMetrics)
		project.GET("/metrics/issues", h.HandleIssues)
		project.GET("/metrics/summary", h.HandleSummary)
	}
}

// NewRouter builds the gin engine with tracing, request IDs, logging,
// body limits, and rate limiting. /metrics is served when the Prometheus
// exporter is active.
func NewRouter(h *Handlers, cfg config.ServerConfig, service string, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.UseRawPath = true
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(service),
		RequestID(),
		RequestLogger(logger),
		BodyLimit(cfg.MaxBodyBytes),
		RateLimit(cfg.RateLimit, cfg.RateBurst),
	)

	if handler := telemetry.MetricsHandler(); handler != nil {
		router.GET("/metrics", gin.WrapH(handler))
	}

	RegisterRoutes(router.Group("/v1"), h)
	return router
}
