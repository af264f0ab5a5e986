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
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/coderag/pkg/ux"
	"github.com/AleutianAI/coderag/pkg/validation"
	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

// projectArg trims and validates a project ID given on the command line.
func projectArg(raw string) (string, error) {
	id, err := validation.SanitizeProjectID(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", graphstore.ErrInvalidProject, err)
	}
	return id, nil
}

func newProjectsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Manage projects",
	}

	var name, description string
	createCmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Register a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				p, err := a.store.CreateProject(cmd.Context(), &graphstore.Project{
					ID:          id,
					Name:        name,
					Description: description,
				})
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), p)
				}
				ux.NewPrinter(cmd.OutOrStdout()).Success("Created project " + p.ID)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "display name (default: the id)")
	createCmd.Flags().StringVar(&description, "description", "", "free-form description")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, serviceName, func(a *app) error {
				projects, err := a.store.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), projects)
				}
				p := ux.NewPrinter(cmd.OutOrStdout())
				if len(projects) == 0 {
					p.Muted("No projects")
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for _, pr := range projects {
					rows = append(rows, []string{pr.ID, pr.Name, pr.Description, pr.CreatedAt.Format("2006-01-02 15:04")})
				}
				p.Table([]string{"ID", "Name", "Description", "Created"}, rows)
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and all its nodes and edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				found, err := a.store.DeleteProject(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("project %s: %w", id, graphstore.ErrNotFound)
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": id})
				}
				ux.NewPrinter(cmd.OutOrStdout()).Success("Deleted project " + id)
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "Remove a project's nodes and edges but keep the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				if err := a.store.ClearProject(cmd.Context(), id); err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"cleared": id})
				}
				ux.NewPrinter(cmd.OutOrStdout()).Success("Cleared project " + id)
				return nil
			})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats <id>",
		Short: "Count a project's nodes and edges by type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				s, err := a.store.ProjectStats(cmd.Context(), id)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), s)
				}
				printStats(ux.NewPrinter(cmd.OutOrStdout()), s)
				return nil
			})
		},
	}

	cmd.AddCommand(createCmd, listCmd, deleteCmd, clearCmd, statsCmd)
	return cmd
}

func printStats(p *ux.Printer, s *graphstore.ProjectStats) {
	p.Title("Project " + s.ProjectID)
	p.KeyValues("nodes", strconv.Itoa(s.NodeCount), "edges", strconv.Itoa(s.EdgeCount))

	var rows [][]string
	for t, n := range s.NodesByType {
		rows = append(rows, []string{"node", string(t), strconv.Itoa(n)})
	}
	for t, n := range s.EdgesByType {
		rows = append(rows, []string{"edge", string(t), strconv.Itoa(n)})
	}
	if len(rows) == 0 {
		return
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] > rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})
	p.Table([]string{"Kind", "Type", "Count"}, rows)
}
