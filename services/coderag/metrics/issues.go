// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// FindArchitecturalIssues detects project-wide design problems.
//
// Description:
//
//	Reports dependency cycles between classes (severity high), god classes
//	whose WMC or RFC exceeds twice its threshold (critical when both do,
//	else high), and classes whose CBO exceeds its threshold (high above
//	twice the threshold, else medium). Cycles come first, then god
//	classes, then coupling. Within each kind issues are ordered by class ID.
//
// Outputs:
//
//	[]ArchitecturalIssue - The issues. Empty, never nil, when there are none.
//	error - Non-nil when the graph cannot be read.
func (e *Engine) FindArchitecturalIssues(ctx context.Context, projectID string) ([]ArchitecturalIssue, error) {
	ctx, span := startComputeSpan(ctx, "FindArchitecturalIssues", projectID)
	start := time.Now()

	issues, err := e.findIssues(ctx, projectID)

	recordComputeMetrics(ctx, "issues", time.Since(start), err)
	endSpan(span, err)
	return issues, err
}

func (e *Engine) findIssues(ctx context.Context, projectID string) ([]ArchitecturalIssue, error) {
	view, err := e.newView(projectID)
	if err != nil {
		return nil, err
	}
	all, err := e.projectFacts(ctx, view)
	if err != nil {
		return nil, err
	}
	return e.issuesFrom(all), nil
}

// CalculateProjectSummary averages CK metrics over every class, detects
// issues, and scores the project.
func (e *Engine) CalculateProjectSummary(ctx context.Context, projectID string) (*ProjectSummary, error) {
	ctx, span := startComputeSpan(ctx, "CalculateProjectSummary", projectID)
	start := time.Now()

	summary, err := e.summarize(ctx, projectID)

	recordComputeMetrics(ctx, "summary", time.Since(start), err)
	endSpan(span, err)
	if err == nil {
		e.logger.Info("project summary computed",
			slog.String("project_id", projectID),
			slog.Int("classes", summary.ClassCount),
			slog.Int("issues", summary.IssueCount),
			slog.Int("score", summary.Score),
			slog.String("grade", summary.Grade),
		)
	}
	return summary, err
}

func (e *Engine) summarize(ctx context.Context, projectID string) (*ProjectSummary, error) {
	view, err := e.newView(projectID)
	if err != nil {
		return nil, err
	}
	all, err := e.projectFacts(ctx, view)
	if err != nil {
		return nil, err
	}

	s := &ProjectSummary{ProjectID: projectID, ClassCount: len(all)}
	if n := float64(len(all)); n > 0 {
		for _, f := range all {
			s.AvgWMC += float64(f.metrics.WMC)
			s.AvgDIT += float64(f.metrics.DIT)
			s.AvgNOC += float64(f.metrics.NOC)
			s.AvgCBO += float64(f.metrics.CBO)
			s.AvgRFC += float64(f.metrics.RFC)
			s.AvgLCOM += f.metrics.LCOM
		}
		s.AvgWMC /= n
		s.AvgDIT /= n
		s.AvgNOC /= n
		s.AvgCBO /= n
		s.AvgRFC /= n
		s.AvgLCOM /= n
	}

	s.Issues = e.issuesFrom(all)
	s.IssueCount = len(s.Issues)
	s.Score, s.Grade = ScoreProject(s.AvgCBO, s.AvgRFC, s.AvgDIT, s.IssueCount, e.cfg.Thresholds)
	return s, nil
}

// projectFacts computes facts for every class in the project, in parallel.
// The result is ordered by class ID.
func (e *Engine) projectFacts(ctx context.Context, view *graphView) ([]*facts, error) {
	classes, err := view.allClasses(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*facts, len(classes))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, class := range classes {
		g.Go(func() error {
			f, err := e.classFacts(gCtx, view, class)
			if err != nil {
				return fmt.Errorf("class %s: %w", class.ID, err)
			}
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// issuesFrom derives architectural issues from per-class facts.
func (e *Engine) issuesFrom(all []*facts) []ArchitecturalIssue {
	th := e.cfg.Thresholds
	issues := []ArchitecturalIssue{}

	graph := make(map[string][]string, len(all))
	for _, f := range all {
		graph[f.metrics.ClassID] = f.efferent
	}
	for _, cycle := range findCycles(graph) {
		issues = append(issues, ArchitecturalIssue{
			Kind:     IssueCircularDependency,
			Severity: SeverityHigh,
			Description: fmt.Sprintf("Circular dependency between %d classes: %s",
				len(cycle), strings.Join(cycle, ", ")),
			Classes: cycle,
		})
	}

	for _, f := range all {
		m := f.metrics
		wmcHigh := m.WMC > godClassFactor*th.WMC
		rfcHigh := m.RFC > godClassFactor*th.RFC
		if !wmcHigh && !rfcHigh {
			continue
		}
		severity := SeverityHigh
		if wmcHigh && rfcHigh {
			severity = SeverityCritical
		}
		issues = append(issues, ArchitecturalIssue{
			Kind:     IssueGodClass,
			Severity: severity,
			Description: fmt.Sprintf("God class %s: WMC %d, RFC %d (limits %d, %d)",
				m.ClassID, m.WMC, m.RFC, godClassFactor*th.WMC, godClassFactor*th.RFC),
			Classes: []string{m.ClassID},
		})
	}

	for _, f := range all {
		m := f.metrics
		if m.CBO <= th.CBO {
			continue
		}
		severity := SeverityMedium
		if m.CBO > highCouplingMult*th.CBO {
			severity = SeverityHigh
		}
		issues = append(issues, ArchitecturalIssue{
			Kind:        IssueExcessiveCoupling,
			Severity:    severity,
			Description: fmt.Sprintf("Excessive coupling in %s: CBO %d exceeds %d", m.ClassID, m.CBO, th.CBO),
			Classes:     []string{m.ClassID},
		})
	}
	return issues
}

// findCycles returns the strongly connected components of graph with more
// than one node, using an iterative Tarjan walk. Every node and edge is
// visited once, so the walk is bounded by the graph size and never by call
// stack depth. Each cycle is sorted, and cycles are ordered by their first
// member.
func findCycles(graph map[string][]string) [][]string {
	type frame struct {
		node string
		next int
	}

	index := 0
	indices := make(map[string]int, len(graph))
	lowlinks := make(map[string]int, len(graph))
	onStack := make(map[string]bool, len(graph))
	var stack []string
	var sccs [][]string

	visit := func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true
	}

	for _, root := range sortedKeys(graph) {
		if _, visited := indices[root]; visited {
			continue
		}
		visit(root)
		work := []frame{{node: root}}

		for len(work) > 0 {
			top := &work[len(work)-1]
			v := top.node

			if top.next < len(graph[v]) {
				w := graph[v][top.next]
				top.next++
				if _, known := graph[w]; !known {
					continue
				}
				if _, visited := indices[w]; !visited {
					visit(w)
					work = append(work, frame{node: w})
				} else if onStack[w] {
					lowlinks[v] = min(lowlinks[v], indices[w])
				}
				continue
			}

			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].node
				lowlinks[parent] = min(lowlinks[parent], lowlinks[v])
			}

			if lowlinks[v] != indices[v] {
				continue
			}
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 {
				sort.Strings(scc)
				sccs = append(sccs, scc)
			}
		}
	}

	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
