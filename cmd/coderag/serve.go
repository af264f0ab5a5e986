// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/coderag/services/coderag/api"
	"github.com/AleutianAI/coderag/services/coderag/mcpserver"
	"github.com/AleutianAI/coderag/services/coderag/telemetry"
)

const serviceName = "coderag"

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(opts, serviceName, func(a *app) error {
				if addr != "" {
					a.cfg.Server.Addr = addr
				}
				a.cfg.Telemetry.ServiceVersion = version

				shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry)
				if err != nil {
					return err
				}
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(sctx); err != nil {
						a.logger().Warn("telemetry shutdown", slog.String("error", err.Error()))
					}
				}()

				h := api.NewHandlers(a.store, a.ingestor, a.engine, a.logger())
				router := api.NewRouter(h, a.cfg.Server, a.cfg.Telemetry.ServiceName, a.logger())
				return api.NewServer(a.cfg.Server, router, a.logger()).Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Serve the graph queries and metrics as Model Context Protocol tools on
stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(opts, serviceName+"-mcp", func(a *app) error {
				return mcpserver.New(a.store, a.engine, version, a.logger()).Run(ctx)
			})
		},
	}
}
