// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdge_ExactResolution(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAddNode(t, s, testNode("p", "a.Caller", NodeTypeMethod))
	mustAddNode(t, s, testNode("p", "a.Callee", NodeTypeMethod))

	e := testEdge("p", "e1", EdgeTypeCalls, "a.Caller", "a.Callee")
	e.Attributes = Attributes{"line": 12}
	stored, err := s.AddEdge(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "a.Callee", stored.Target)

	got, err := s.GetEdge(ctx, "p", "e1")
	require.NoError(t, err)
	assert.Equal(t, EdgeTypeCalls, got.Type)
	assert.Equal(t, int64(12), got.Attributes["line"])
	assert.False(t, got.IsCrossProject())
}

func TestAddEdge_ImplementsSimpleNameFallback(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAddNode(t, s, testNode("p", "com.example.Impl", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "com.example.Foo", NodeTypeInterface))

	t.Run("implements resolves by simple name", func(t *testing.T) {
		stored, err := s.AddEdge(ctx, testEdge("p", "impl", EdgeTypeImplements, "com.example.Impl", "other.pkg.Foo"))
		require.NoError(t, err)
		assert.Equal(t, "com.example.Foo", stored.Target)

		got, err := s.GetEdge(ctx, "p", "impl")
		require.NoError(t, err)
		assert.Equal(t, "com.example.Foo", got.Target)
	})

	t.Run("unqualified reference resolves", func(t *testing.T) {
		stored, err := s.AddEdge(ctx, testEdge("p", "impl2", EdgeTypeImplements, "com.example.Impl", "Foo"))
		require.NoError(t, err)
		assert.Equal(t, "com.example.Foo", stored.Target)
	})

	t.Run("calls has no fallback", func(t *testing.T) {
		_, err := s.AddEdge(ctx, testEdge("p", "call", EdgeTypeCalls, "com.example.Impl", "other.pkg.Foo"))
		assert.ErrorIs(t, err, ErrEndpointNotFound)

		_, err = s.GetEdge(ctx, "p", "call")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("source is never resolved by fallback", func(t *testing.T) {
		_, err := s.AddEdge(ctx, testEdge("p", "bad-src", EdgeTypeImplements, "other.pkg.Impl", "com.example.Foo"))
		assert.ErrorIs(t, err, ErrEndpointNotFound)
	})

	t.Run("unresolvable target fails", func(t *testing.T) {
		_, err := s.AddEdge(ctx, testEdge("p", "nothing", EdgeTypeImplements, "com.example.Impl", "other.pkg.Missing"))
		assert.ErrorIs(t, err, ErrEndpointNotFound)
	})

	t.Run("fallback stays inside the project", func(t *testing.T) {
		mustAddNode(t, s, testNode("q", "q.Impl", NodeTypeClass))
		_, err := s.AddEdge(ctx, testEdge("q", "impl", EdgeTypeImplements, "q.Impl", "other.pkg.Foo"))
		assert.ErrorIs(t, err, ErrEndpointNotFound)
	})
}

func TestAddEdge_FallbackPrefersInterfaces(t *testing.T) {
	s, _ := newTestStore(t)
	mustAddNode(t, s, testNode("p", "a.Impl", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "a.Shape", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "b.Shape", NodeTypeInterface))
	mustAddNode(t, s, testNode("p", "c.Shape", NodeTypeInterface))

	stored := mustAddEdge(t, s, testEdge("p", "e", EdgeTypeImplements, "a.Impl", "x.Shape"))
	assert.Equal(t, "b.Shape", stored.Target)
}

func TestAddEdge_Identity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAddNode(t, s, testNode("p", "a.A", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "a.B", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "a.run", NodeTypeMethod))

	mustAddEdge(t, s, testEdge("p", "e1", EdgeTypeExtends, "a.B", "a.A"))

	_, err := s.AddEdge(ctx, testEdge("p", "e1", EdgeTypeReferences, "a.A", "a.B"))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.AddEdge(ctx, testEdge("p", "loop", EdgeTypeExtends, "a.A", "a.A"))
	assert.ErrorIs(t, err, ErrInvalidEdge)

	_, err = s.AddEdge(ctx, testEdge("p", "recursion", EdgeTypeCalls, "a.run", "a.run"))
	assert.NoError(t, err)

	_, err = s.AddEdge(ctx, testEdge("p", "bad-type", EdgeType("owns"), "a.A", "a.B"))
	assert.ErrorIs(t, err, ErrInvalidEdge)
}

func TestUpdateEdge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAddNode(t, s, testNode("p", "a.A", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "a.B", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "a.C", NodeTypeClass))
	mustAddEdge(t, s, testEdge("p", "e1", EdgeTypeReferences, "a.A", "a.B"))

	t.Run("endpoints are immutable", func(t *testing.T) {
		_, err := s.UpdateEdge(ctx, "p", "e1", Updates{"source": "a.C", "target": "a.C"})
		assert.ErrorIs(t, err, ErrInvalidUpdate)

		updated, err := s.UpdateEdge(ctx, "p", "e1", Updates{"target": "a.C", "attributes": map[string]any{"weight": 2}})
		require.NoError(t, err)
		assert.Equal(t, "a.B", updated.Target)
	})

	t.Run("type change moves the edge between type indexes", func(t *testing.T) {
		_, err := s.UpdateEdge(ctx, "p", "e1", Updates{"type": "calls"})
		require.NoError(t, err)

		refs, err := s.FindEdgesByType(ctx, "p", EdgeTypeReferences)
		require.NoError(t, err)
		assert.Empty(t, refs)

		calls, err := s.FindEdgesByType(ctx, "p", EdgeTypeCalls)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1"}, edgeIDs(calls))
	})

	t.Run("unknown type fails", func(t *testing.T) {
		_, err := s.UpdateEdge(ctx, "p", "e1", Updates{"type": "owns"})
		assert.ErrorIs(t, err, ErrInvalidUpdate)
	})

	t.Run("empty update fails", func(t *testing.T) {
		_, err := s.UpdateEdge(ctx, "p", "e1", nil)
		assert.ErrorIs(t, err, ErrInvalidUpdate)
	})

	t.Run("missing edge fails", func(t *testing.T) {
		_, err := s.UpdateEdge(ctx, "p", "missing", Updates{"type": "calls"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteEdge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAddNode(t, s, testNode("p", "a.A", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "a.B", NodeTypeClass))
	mustAddEdge(t, s, testEdge("p", "e1", EdgeTypeReferences, "a.A", "a.B"))

	deleted, err := s.DeleteEdge(ctx, "p", "e1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteEdge(ctx, "p", "e1")
	require.NoError(t, err)
	assert.False(t, deleted)

	out, err := s.FindEdgesBySource(ctx, "p", "a.A")
	require.NoError(t, err)
	assert.Empty(t, out)

	in, err := s.FindEdgesByTarget(ctx, "p", "a.B")
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestFindEdges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, p := range []string{"p", "q"} {
		mustAddNode(t, s, testNode(p, "a.A", NodeTypeClass))
		mustAddNode(t, s, testNode(p, "a.B", NodeTypeClass))
		mustAddNode(t, s, testNode(p, "a.C", NodeTypeClass))
	}
	mustAddEdge(t, s, testEdge("p", "e1", EdgeTypeReferences, "a.A", "a.B"))
	mustAddEdge(t, s, testEdge("p", "e2", EdgeTypeExtends, "a.A", "a.C"))
	mustAddEdge(t, s, testEdge("p", "e3", EdgeTypeReferences, "a.B", "a.C"))
	mustAddEdge(t, s, testEdge("q", "e1", EdgeTypeReferences, "a.A", "a.B"))

	bySource, err := s.FindEdgesBySource(ctx, "p", "a.A")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, edgeIDs(bySource))

	byTarget, err := s.FindEdgesByTarget(ctx, "p", "a.C")
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, edgeIDs(byTarget))

	byType, err := s.FindEdgesByType(ctx, "p", EdgeTypeReferences)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e3"}, edgeIDs(byType))

	qOnly, err := s.FindEdgesByType(ctx, "q", EdgeTypeReferences)
	require.NoError(t, err)
	require.Len(t, qOnly, 1)
	assert.Equal(t, "q", qOnly[0].ProjectID)

	global, err := s.FindEdgesByTypeAcrossProjects(ctx, EdgeTypeReferences)
	require.NoError(t, err)
	assert.Len(t, global, 3)
}

func TestCrossProjectEdges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAddNode(t, s, testNode("app", "app.Client", NodeTypeClass))
	mustAddNode(t, s, testNode("lib", "lib.Api", NodeTypeInterface))

	cross := testEdge("app", "dep", EdgeTypeImplements, "app.Client", "lib.Api")
	cross.TargetProjectID = "lib"
	stored := mustAddEdge(t, s, cross)
	assert.True(t, stored.IsCrossProject())

	t.Run("cross-project targets require exact ids", func(t *testing.T) {
		loose := testEdge("app", "loose", EdgeTypeImplements, "app.Client", "x.Api")
		loose.TargetProjectID = "lib"
		_, err := s.AddEdge(ctx, loose)
		assert.ErrorIs(t, err, ErrEndpointNotFound)
	})

	t.Run("dependencies report scoped keys", func(t *testing.T) {
		deps, err := s.FindCrossProjectDependencies(ctx)
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.Equal(t, "app:app.Client", deps[0].SourceKey)
		assert.Equal(t, "lib:lib.Api", deps[0].TargetKey)
		require.NotNil(t, deps[0].Source)
		require.NotNil(t, deps[0].Target)
		assert.Equal(t, "lib", deps[0].Target.ProjectID)
	})

	t.Run("target queries stay inside the project", func(t *testing.T) {
		mustAddNode(t, s, testNode("lib", "lib.Impl", NodeTypeClass))
		local := mustAddEdge(t, s, testEdge("lib", "local", EdgeTypeImplements, "lib.Impl", "lib.Api"))

		in, err := s.FindEdgesByTarget(ctx, "lib", "lib.Api")
		require.NoError(t, err)
		assert.Equal(t, []string{local.ID}, edgeIDs(in))

		fromApp, err := s.FindEdgesByTarget(ctx, "app", "lib.Api")
		require.NoError(t, err)
		assert.Empty(t, fromApp)

		libEdges, err := s.FindEdgesByType(ctx, "lib", EdgeTypeImplements)
		require.NoError(t, err)
		assert.Equal(t, []string{"local"}, edgeIDs(libEdges))
	})
}
