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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

func TestCalculatePackageMetrics(t *testing.T) {
	f := sampleGraph(t)
	e := f.engine()
	ctx := context.Background()

	t.Run("by qualified name prefix", func(t *testing.T) {
		m, err := e.CalculatePackageMetrics(ctx, f.project, "com.ex")
		require.NoError(t, err)
		assert.Equal(t, 3, m.Classes)
		assert.Equal(t, 1, m.AbstractClasses)
		assert.Equal(t, 0, m.Ca)
		assert.Equal(t, 1, m.Ce)
		assert.InDelta(t, 1.0, m.Instability, 1e-9)
		assert.InDelta(t, 1.0/3.0, m.Abstractness, 1e-9)
		assert.InDelta(t, 1.0/3.0, m.Distance, 1e-9)
	})

	t.Run("by package node", func(t *testing.T) {
		m, err := e.CalculatePackageMetrics(ctx, f.project, "com.util")
		require.NoError(t, err)
		assert.Equal(t, 1, m.Classes)
		assert.Equal(t, 1, m.Ca)
		assert.Equal(t, 0, m.Ce)
		assert.Zero(t, m.Instability)
		assert.InDelta(t, 1.0, m.Distance, 1e-9)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := e.CalculatePackageMetrics(ctx, f.project, "com.none")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := e.CalculatePackageMetrics(ctx, f.project, "  ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestCalculatePackageMetrics_EmptyPackageNode(t *testing.T) {
	f := newFixture(t, "empty")
	f.node("empty.pkg", graphstore.NodeTypePackage)

	a, err := f.engine().AssessPackage(context.Background(), f.project, "empty.pkg")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Metrics.Classes)
	assert.Zero(t, a.Metrics.Abstractness)
	assert.Equal(t, []string{"poorly_balanced", "isolated"}, findingMetrics(a.Findings))
}

func TestEngine_AssessPackage(t *testing.T) {
	f := sampleGraph(t)
	a, err := f.engine().AssessPackage(context.Background(), f.project, "com.util")
	require.NoError(t, err)
	assert.Equal(t, []string{"poorly_balanced"}, findingMetrics(a.Findings))
	assert.False(t, a.Healthy)
}

func TestIsAbstract(t *testing.T) {
	assert.True(t, isAbstract(&graphstore.CodeNode{Type: graphstore.NodeTypeInterface}))
	assert.True(t, isAbstract(&graphstore.CodeNode{Type: graphstore.NodeTypeClass, Modifiers: []string{"Abstract"}}))
	assert.True(t, isAbstract(&graphstore.CodeNode{Type: graphstore.NodeTypeClass,
		Attributes: graphstore.Attributes{"is_abstract": true}}))
	assert.False(t, isAbstract(&graphstore.CodeNode{Type: graphstore.NodeTypeClass, Modifiers: []string{"final"}}))
}
