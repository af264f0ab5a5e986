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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

func methodNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("m%d", i)
	}
	return names
}

func TestFindArchitecturalIssues_Cycles(t *testing.T) {
	f := newFixture(t, "cycles")
	for _, c := range []string{"A", "B", "C", "D", "X", "Y"} {
		f.class(c, []string{"m"}, nil)
	}
	f.edge(graphstore.EdgeTypeCalls, "A.m", "B.m")
	f.edge(graphstore.EdgeTypeCalls, "B.m", "C.m")
	f.edge(graphstore.EdgeTypeCalls, "C.m", "A.m")
	f.edge(graphstore.EdgeTypeCalls, "D.m", "A.m")
	f.edge(graphstore.EdgeTypeExtends, "X", "Y")
	f.edge(graphstore.EdgeTypeReferences, "Y.m", "X.m")

	issues, err := f.engine().FindArchitecturalIssues(context.Background(), f.project)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, IssueCircularDependency, issues[0].Kind)
	assert.Equal(t, SeverityHigh, issues[0].Severity)
	assert.Equal(t, []string{"A", "B", "C"}, issues[0].Classes)
	assert.Contains(t, issues[0].Description, "A, B, C")

	assert.Equal(t, []string{"X", "Y"}, issues[1].Classes)
}

func TestFindArchitecturalIssues_GodClasses(t *testing.T) {
	f := newFixture(t, "god")
	f.class("G", methodNames(31), nil)
	f.class("K", methodNames(31), nil)
	f.class("L", methodNames(30), nil)
	for i := 0; i < 30; i++ {
		f.edge(graphstore.EdgeTypeCalls, fmt.Sprintf("K.m%d", i), fmt.Sprintf("L.m%d", i))
	}

	e := f.engine()
	issues, err := e.FindArchitecturalIssues(context.Background(), f.project)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, IssueGodClass, issues[0].Kind)
	assert.Equal(t, []string{"G"}, issues[0].Classes)
	assert.Equal(t, SeverityHigh, issues[0].Severity)

	assert.Equal(t, IssueGodClass, issues[1].Kind)
	assert.Equal(t, []string{"K"}, issues[1].Classes)
	assert.Equal(t, SeverityCritical, issues[1].Severity)

	summary, err := e.CalculateProjectSummary(context.Background(), f.project)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ClassCount)
	assert.InDelta(t, (31.0+61.0+30.0)/3.0, summary.AvgRFC, 1e-9)
	assert.Equal(t, 2, summary.IssueCount)
	assert.Equal(t, 75, summary.Score)
	assert.Equal(t, "Good", summary.Grade)
}

func TestFindArchitecturalIssues_Coupling(t *testing.T) {
	f := newFixture(t, "coupling")
	f.class("Hub", []string{"run"}, nil)
	f.class("Hub2", []string{"run"}, nil)
	for i := 0; i < 11; i++ {
		c := fmt.Sprintf("C%02d", i)
		f.class(c, []string{"m"}, nil)
		f.edge(graphstore.EdgeTypeCalls, "Hub.run", c+".m")
	}
	for i := 0; i < 21; i++ {
		c := fmt.Sprintf("D%02d", i)
		f.class(c, []string{"m"}, nil)
		f.edge(graphstore.EdgeTypeCalls, "Hub2.run", c+".m")
	}

	issues, err := f.engine().FindArchitecturalIssues(context.Background(), f.project)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, IssueExcessiveCoupling, issues[0].Kind)
	assert.Equal(t, []string{"Hub"}, issues[0].Classes)
	assert.Equal(t, SeverityMedium, issues[0].Severity)

	assert.Equal(t, []string{"Hub2"}, issues[1].Classes)
	assert.Equal(t, SeverityHigh, issues[1].Severity)
}

func TestCalculateProjectSummary(t *testing.T) {
	f := sampleGraph(t)
	s, err := f.engine().CalculateProjectSummary(context.Background(), f.project)
	require.NoError(t, err)

	assert.Equal(t, 4, s.ClassCount)
	assert.InDelta(t, 1.0, s.AvgWMC, 1e-9)
	assert.InDelta(t, 0.75, s.AvgDIT, 1e-9)
	assert.InDelta(t, 0.5, s.AvgNOC, 1e-9)
	assert.InDelta(t, 2.0, s.AvgCBO, 1e-9)
	assert.InDelta(t, 1.5, s.AvgRFC, 1e-9)
	assert.InDelta(t, 0.25, s.AvgLCOM, 1e-9)
	assert.Empty(t, s.Issues)
	assert.Equal(t, 100, s.Score)
	assert.Equal(t, "Excellent", s.Grade)
}

func TestCalculateProjectSummary_EmptyProject(t *testing.T) {
	f := newFixture(t, "nothing")
	s, err := f.engine().CalculateProjectSummary(context.Background(), f.project)
	require.NoError(t, err)
	assert.Zero(t, s.ClassCount)
	assert.Zero(t, s.AvgCBO)
	assert.NotNil(t, s.Issues)
	assert.Equal(t, 100, s.Score)
}

func TestFindCycles(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a", "outside"},
		"d": {"d"},
		"e": {"f"},
		"f": {"e"},
	}

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"e", "f"}}, findCycles(graph))
	assert.Empty(t, findCycles(map[string][]string{}))
}

func TestFindCycles_ChainIntoCycle(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"v"},
		"v": {"w"},
		"w": {"v"},
	}
	assert.Equal(t, [][]string{{"v", "w"}}, findCycles(graph))
}

func TestFindCycles_DeepChain(t *testing.T) {
	const n = 100000
	graph := make(map[string][]string, n)
	for i := 0; i < n; i++ {
		graph[fmt.Sprintf("n%06d", i)] = []string{fmt.Sprintf("n%06d", i+1)}
	}
	graph[fmt.Sprintf("n%06d", n-1)] = []string{"n099998"}

	assert.Equal(t, [][]string{{"n099998", "n099999"}}, findCycles(graph))
}

func TestFindCycles_NestedComponents(t *testing.T) {
	graph := map[string][]string{
		"a": {"b", "x"},
		"b": {"a"},
		"x": {"y"},
		"y": {"z"},
		"z": {"x", "a"},
	}
	assert.Equal(t, [][]string{{"a", "b", "x", "y", "z"}}, findCycles(graph))
}
