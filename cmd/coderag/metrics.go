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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/coderag/pkg/ux"
	"github.com/AleutianAI/coderag/services/coderag/metrics"
)

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "metrics",
		Aliases: []string{"m"},
		Short:   "Compute class, package and project metrics",
	}

	classCmd := &cobra.Command{
		Use:   "class <project> <class>",
		Short: "CK metrics for one class, by ID or simple name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				assessment, err := a.engine.AssessClass(cmd.Context(), project, args[1])
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), assessment)
				}
				printClassAssessment(ux.NewPrinter(cmd.OutOrStdout()), assessment)
				return nil
			})
		},
	}

	packageCmd := &cobra.Command{
		Use:   "package <project> <package>",
		Short: "Coupling, instability and abstractness for one package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				assessment, err := a.engine.AssessPackage(cmd.Context(), project, args[1])
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), assessment)
				}
				printPackageAssessment(ux.NewPrinter(cmd.OutOrStdout()), assessment)
				return nil
			})
		},
	}

	issuesCmd := &cobra.Command{
		Use:   "issues <project>",
		Short: "Dependency cycles, god classes and excessive coupling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				issues, err := a.engine.FindArchitecturalIssues(cmd.Context(), project)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), issues)
				}
				printIssues(ux.NewPrinter(cmd.OutOrStdout()), issues)
				return nil
			})
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary <project>",
		Short: "Average class metrics, issues and quality score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, serviceName, func(a *app) error {
				summary, err := a.engine.CalculateProjectSummary(cmd.Context(), project)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), summary)
				}
				printSummary(ux.NewPrinter(cmd.OutOrStdout()), summary)
				return nil
			})
		},
	}

	cmd.AddCommand(classCmd, packageCmd, issuesCmd, summaryCmd)
	return cmd
}

func printFindings(p *ux.Printer, healthy bool, findings []metrics.Finding) {
	if healthy {
		p.Success("Within thresholds")
		return
	}
	for _, f := range findings {
		p.Warning(fmt.Sprintf("%s: %s", f.Metric, f.Message))
	}
}

func printClassAssessment(p *ux.Printer, a *metrics.ClassAssessment) {
	m := a.Metrics
	p.Title(m.ClassID)
	p.Table(
		[]string{"WMC", "DIT", "NOC", "CBO", "RFC", "LCOM"},
		[][]string{{
			strconv.Itoa(m.WMC), strconv.Itoa(m.DIT), strconv.Itoa(m.NOC),
			strconv.Itoa(m.CBO), strconv.Itoa(m.RFC), formatRatio(m.LCOM),
		}},
	)
	printFindings(p, a.Healthy, a.Findings)
}

func printPackageAssessment(p *ux.Printer, a *metrics.PackageAssessment) {
	m := a.Metrics
	p.Title("Package " + m.Package)
	p.KeyValues(
		"classes", fmt.Sprintf("%d (%d abstract)", m.Classes, m.AbstractClasses),
		"afferent (Ca)", strconv.Itoa(m.Ca),
		"efferent (Ce)", strconv.Itoa(m.Ce),
		"instability", formatRatio(m.Instability),
		"abstractness", formatRatio(m.Abstractness),
		"distance", formatRatio(m.Distance),
	)
	printFindings(p, a.Healthy, a.Findings)
}

func printIssues(p *ux.Printer, issues []metrics.ArchitecturalIssue) {
	if len(issues) == 0 {
		p.Success("No architectural issues")
		return
	}
	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, []string{string(issue.Severity), string(issue.Kind), strings.Join(issue.Classes, ", ")})
	}
	p.Table([]string{"Severity", "Kind", "Classes"}, rows)
}

func printSummary(p *ux.Printer, s *metrics.ProjectSummary) {
	p.Box("Project "+s.ProjectID, fmt.Sprintf("Score %d (%s)", s.Score, s.Grade))
	p.KeyValues(
		"classes", strconv.Itoa(s.ClassCount),
		"avg WMC", formatRatio(s.AvgWMC),
		"avg DIT", formatRatio(s.AvgDIT),
		"avg NOC", formatRatio(s.AvgNOC),
		"avg CBO", formatRatio(s.AvgCBO),
		"avg RFC", formatRatio(s.AvgRFC),
		"avg LCOM", formatRatio(s.AvgLCOM),
		"issues", strconv.Itoa(s.IssueCount),
	)
	if len(s.Issues) > 0 {
		printIssues(p, s.Issues)
	}
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
