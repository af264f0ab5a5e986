// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcpserver exposes the code graph and metrics engine as Model
// Context Protocol tools.
//
// Tools return their payload as indented JSON text content. Store and
// engine failures become tool errors (IsError set) rather than protocol
// errors, so a client sees the message and can retry with other input.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	"github.com/AleutianAI/coderag/services/coderag/metrics"
)

// ServerName is reported to clients during initialization.
const ServerName = "coderag"

// Server wraps an MCP server bound to a graph store and metrics engine.
//
// Thread Safety: Safe for concurrent use.
type Server struct {
	store     *graphstore.Store
	engine    *metrics.Engine
	logger    *slog.Logger
	mcpServer *mcp.Server
}

// New creates a Server and registers its tools. A nil logger uses
// slog.Default().
func New(store *graphstore.Store, engine *metrics.Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		engine: engine,
		logger: logger.With(slog.String("component", "mcp")),
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	err := s.mcpServer.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Connect serves a single session over t. Used for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// jsonResult renders v as indented JSON, or err as a tool error.
func (s *Server) jsonResult(tool string, v any, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		s.logger.Debug("tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
		return errorResult(fmt.Sprintf("%s: %v", tool, err)), nil, nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return textResult(string(data)), nil, nil
}
