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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup is an in-memory NodeLookup.
type fakeLookup struct {
	nodes []*CodeNode
	err   error
}

func (f fakeLookup) Exists(projectID, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, n := range f.nodes {
		if n.ProjectID == projectID && n.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeLookup) FindByName(projectID, name string) ([]*CodeNode, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*CodeNode
	for _, n := range f.nodes {
		if n.ProjectID == projectID && (n.Name == name || SimpleName(n.ID) == name) {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestResolveEndpoint(t *testing.T) {
	lookup := fakeLookup{nodes: []*CodeNode{
		testNode("p", "com.example.Foo", NodeTypeInterface),
		testNode("p", "com.example.Bar", NodeTypeClass),
	}}
	chain := DefaultResolutionStrategies()

	t.Run("exact match", func(t *testing.T) {
		id, strategy, err := resolveEndpoint(lookup, chain, EdgeTypeCalls, "p", "com.example.Bar")
		require.NoError(t, err)
		assert.Equal(t, "com.example.Bar", id)
		assert.Equal(t, "exact_id", strategy)
	})

	t.Run("fallback for implements", func(t *testing.T) {
		id, strategy, err := resolveEndpoint(lookup, chain, EdgeTypeImplements, "p", "x.y.Foo")
		require.NoError(t, err)
		assert.Equal(t, "com.example.Foo", id)
		assert.Equal(t, "simple_name", strategy)
	})

	t.Run("no fallback for extends", func(t *testing.T) {
		_, _, err := resolveEndpoint(lookup, chain, EdgeTypeExtends, "p", "x.y.Bar")
		assert.ErrorIs(t, err, ErrEndpointNotFound)
	})

	t.Run("custom chain", func(t *testing.T) {
		wide := []ResolutionStrategy{
			ExactIDStrategy{},
			SimpleNameStrategy{EdgeTypes: []EdgeType{EdgeTypeImplements, EdgeTypeExtends}},
		}
		id, _, err := resolveEndpoint(lookup, wide, EdgeTypeExtends, "p", "x.y.Bar")
		require.NoError(t, err)
		assert.Equal(t, "com.example.Bar", id)
	})

	t.Run("lookup errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := resolveEndpoint(fakeLookup{err: boom}, chain, EdgeTypeCalls, "p", "x")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrEndpointNotFound)
	})
}

func TestWithResolutionStrategies(t *testing.T) {
	s, _ := newTestStore(t, WithResolutionStrategies(ExactIDStrategy{}))
	mustAddNode(t, s, testNode("p", "a.Impl", NodeTypeClass))
	mustAddNode(t, s, testNode("p", "a.Iface", NodeTypeInterface))

	_, err := s.AddEdge(t.Context(), testEdge("p", "e", EdgeTypeImplements, "a.Impl", "b.Iface"))
	assert.ErrorIs(t, err, ErrEndpointNotFound)
}
