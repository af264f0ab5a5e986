// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcpserver

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

// defaultSearchLimit applies when search_nodes omits limit.
const defaultSearchLimit = 25

// SearchNodesArgs are the search_nodes arguments.
type SearchNodesArgs struct {
	Query     string `json:"query" jsonschema:"Case-insensitive text matched against name, qualified name and description"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"Project to search; all projects when empty"`
	Type      string `json:"type,omitempty" jsonschema:"Only return nodes of this type, e.g. class or method"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of nodes to return"`
}

// NodeArgs identify one node.
type NodeArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project that owns the node"`
	NodeID    string `json:"node_id" jsonschema:"Node ID, usually the fully qualified name"`
}

// MethodArgs name a method within a project.
type MethodArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project to query"`
	Method    string `json:"method" jsonschema:"Method ID or simple name"`
}

// InterfaceArgs name an interface within a project.
type InterfaceArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project to query"`
	Interface string `json:"interface" jsonschema:"Interface ID or simple name"`
}

// ClassArgs name a class within a project.
type ClassArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project to query"`
	Class     string `json:"class" jsonschema:"Class ID or simple name"`
}

// PackageArgs name a package within a project.
type PackageArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project to query"`
	Package   string `json:"package" jsonschema:"Package name, e.g. com.example.service"`
}

// ProjectArgs name a project.
type ProjectArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project to query"`
}

// ListProjectsArgs is empty.
type ListProjectsArgs struct{}

type hierarchyResult struct {
	Class     string                 `json:"class"`
	Ancestors []*graphstore.CodeNode `json:"ancestors"`
	Depth     int                    `json:"depth"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_nodes",
		Description: "Searches code graph nodes by text, optionally limited to one project and node type",
	}, s.searchNodes)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_node",
		Description: "Returns one node with its attributes",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args NodeArgs) (*mcp.CallToolResult, any, error) {
		node, err := s.store.GetNode(ctx, args.ProjectID, args.NodeID)
		return s.jsonResult("get_node", node, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_callers",
		Description: "Lists the classes whose methods call the given method",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args MethodArgs) (*mcp.CallToolResult, any, error) {
		classes, err := s.store.FindClassesThatCallMethod(ctx, args.ProjectID, args.Method)
		return s.jsonResult("find_callers", classes, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_implementations",
		Description: "Lists the classes that implement the given interface",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args InterfaceArgs) (*mcp.CallToolResult, any, error) {
		classes, err := s.store.FindClassesThatImplementInterface(ctx, args.ProjectID, args.Interface)
		return s.jsonResult("find_implementations", classes, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "inheritance_hierarchy",
		Description: "Returns a class's superclass chain, nearest ancestor first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ClassArgs) (*mcp.CallToolResult, any, error) {
		chain, err := s.store.FindInheritanceHierarchy(ctx, args.ProjectID, args.Class)
		return s.jsonResult("inheritance_hierarchy", hierarchyResult{Class: args.Class, Ancestors: chain, Depth: len(chain)}, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ck_metrics",
		Description: "Computes Chidamber-Kemerer metrics for a class and flags threshold violations",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ClassArgs) (*mcp.CallToolResult, any, error) {
		assessment, err := s.engine.AssessClass(ctx, args.ProjectID, args.Class)
		return s.jsonResult("ck_metrics", assessment, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "package_metrics",
		Description: "Computes coupling, instability, abstractness and main-sequence distance for a package",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args PackageArgs) (*mcp.CallToolResult, any, error) {
		assessment, err := s.engine.AssessPackage(ctx, args.ProjectID, args.Package)
		return s.jsonResult("package_metrics", assessment, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "architectural_issues",
		Description: "Finds dependency cycles, god classes and excessive coupling in a project",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ProjectArgs) (*mcp.CallToolResult, any, error) {
		issues, err := s.engine.FindArchitecturalIssues(ctx, args.ProjectID)
		return s.jsonResult("architectural_issues", issues, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "project_summary",
		Description: "Summarises a project's class metrics into a quality score and grade",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ProjectArgs) (*mcp.CallToolResult, any, error) {
		summary, err := s.engine.CalculateProjectSummary(ctx, args.ProjectID)
		return s.jsonResult("project_summary", summary, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "project_stats",
		Description: "Counts a project's nodes and edges by type",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ProjectArgs) (*mcp.CallToolResult, any, error) {
		stats, err := s.store.ProjectStats(ctx, args.ProjectID)
		return s.jsonResult("project_stats", stats, err)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_projects",
		Description: "Lists the registered projects",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ ListProjectsArgs) (*mcp.CallToolResult, any, error) {
		projects, err := s.store.ListProjects(ctx)
		return s.jsonResult("list_projects", projects, err)
	})
}

func (s *Server) searchNodes(ctx context.Context, _ *mcp.CallToolRequest, args SearchNodesArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("search_nodes: query is required"), nil, nil
	}
	var filter graphstore.NodeType
	if args.Type != "" {
		t, err := graphstore.ParseNodeType(args.Type)
		if err != nil {
			return errorResult("search_nodes: " + err.Error()), nil, nil
		}
		filter = t
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		nodes []*graphstore.CodeNode
		err   error
	)
	if args.ProjectID == "" {
		nodes, err = s.store.SearchNodesAcrossProjects(ctx, args.Query, 0)
	} else {
		nodes, err = s.store.SearchNodes(ctx, args.ProjectID, args.Query, 0)
	}
	if err != nil {
		return s.jsonResult("search_nodes", nil, err)
	}

	matched := make([]*graphstore.CodeNode, 0, min(len(nodes), limit))
	for _, n := range nodes {
		if filter != "" && n.Type != filter {
			continue
		}
		matched = append(matched, n)
		if len(matched) == limit {
			break
		}
	}
	return s.jsonResult("search_nodes", matched, nil)
}
