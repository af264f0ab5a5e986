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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/coderag/pkg/ux"
	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Ingest parser output from a JSON file",
		Long: `Ingest a JSON document with "entities", "relationships" and optional
"parse_errors" into a project. Use - to read from stdin. --project
overrides the document's project_id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readIngestRequest(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if project != "" {
				if req.ProjectID, err = projectArg(project); err != nil {
					return err
				}
			}
			return withApp(opts, serviceName, func(a *app) error {
				result, err := a.ingestor.Ingest(cmd.Context(), req)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				printIngestResult(ux.NewPrinter(cmd.OutOrStdout()), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "target project")
	return cmd
}

func readIngestRequest(stdin io.Reader, path string) (graphstore.IngestRequest, error) {
	var req graphstore.IngestRequest
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("decode %s: %w", path, err)
	}
	return req, nil
}

func printIngestResult(p *ux.Printer, r *graphstore.IngestResult) {
	p.Success(fmt.Sprintf("Ingested into %s in %dms", r.ProjectID, r.DurationMs))
	p.KeyValues(
		"entities", fmt.Sprintf("%d created, %d skipped", r.EntitiesCreated, r.EntitiesSkipped),
		"relationships", fmt.Sprintf("%d created, %d skipped", r.RelationshipsCreated, r.RelationshipsSkipped),
		"packages", fmt.Sprintf("%d created", r.PackagesCreated),
	)
	if len(r.Failures) > 0 {
		p.Warning(fmt.Sprintf("%d failures", len(r.Failures)))
		for _, f := range r.Failures {
			p.Bullet(fmt.Sprintf("%s %s: %s", f.Kind, f.ID, f.Error))
		}
	}
	if len(r.ParseErrors) > 0 {
		p.Warning(fmt.Sprintf("%d parse errors reported", len(r.ParseErrors)))
		for _, e := range r.ParseErrors {
			p.Bullet(fmt.Sprintf("%s: %s", e.File, e.Message))
		}
	}
}
