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
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
)

// fixture builds a small graph in an in-memory store.
type fixture struct {
	t       *testing.T
	store   *graphstore.Store
	project string
	edges   int
}

func newFixture(t *testing.T, projectID string) *fixture {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		t:       t,
		store:   graphstore.New(db, graphstore.WithLogger(logger)),
		project: projectID,
	}
}

func (f *fixture) engine(opts ...Option) *Engine {
	f.t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	e, err := NewEngine(f.store, DefaultConfig(), opts...)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) node(id string, t graphstore.NodeType, modifiers ...string) {
	f.t.Helper()
	_, err := f.store.AddNode(context.Background(), &graphstore.CodeNode{
		ID:            id,
		ProjectID:     f.project,
		Type:          t,
		Name:          graphstore.SimpleName(id),
		QualifiedName: id,
		SourceFile:    "src/" + graphstore.SimpleName(id) + ".java",
		StartLine:     1,
		EndLine:       10,
		Modifiers:     modifiers,
	})
	require.NoError(f.t, err)
}

func (f *fixture) edge(t graphstore.EdgeType, source, target string) {
	f.t.Helper()
	f.edges++
	_, err := f.store.AddEdge(context.Background(), &graphstore.CodeEdge{
		ID:        fmt.Sprintf("e%d", f.edges),
		ProjectID: f.project,
		Type:      t,
		Source:    source,
		Target:    target,
	})
	require.NoError(f.t, err)
}

// class adds a class with the given methods and fields, each contained by
// the class and named <class>.<member>.
func (f *fixture) class(id string, methods, fields []string, modifiers ...string) {
	f.t.Helper()
	f.node(id, graphstore.NodeTypeClass, modifiers...)
	for _, m := range methods {
		f.node(id+"."+m, graphstore.NodeTypeMethod)
		f.edge(graphstore.EdgeTypeContains, id, id+"."+m)
	}
	for _, fld := range fields {
		f.node(id+"."+fld, graphstore.NodeTypeField)
		f.edge(graphstore.EdgeTypeContains, id, id+"."+fld)
	}
}

// sampleGraph builds:
//
//	com.ex.Base (abstract; methods a, b; fields x, y; a uses x, b uses y)
//	com.ex.Mid extends Base
//	com.ex.Leaf extends Mid; Leaf.run calls Base.a and Util.help
//	com.util.Util (method help), contained by package node com.util
func sampleGraph(t *testing.T) *fixture {
	f := newFixture(t, "sample")
	f.class("com.ex.Base", []string{"a", "b"}, []string{"x", "y"}, "public", "abstract")
	f.edge(graphstore.EdgeTypeReferences, "com.ex.Base.a", "com.ex.Base.x")
	f.edge(graphstore.EdgeTypeReferences, "com.ex.Base.b", "com.ex.Base.y")

	f.class("com.ex.Mid", nil, nil)
	f.edge(graphstore.EdgeTypeExtends, "com.ex.Mid", "com.ex.Base")

	f.class("com.ex.Leaf", []string{"run"}, nil)
	f.edge(graphstore.EdgeTypeExtends, "com.ex.Leaf", "com.ex.Mid")

	f.node("com.util", graphstore.NodeTypePackage)
	f.class("com.util.Util", []string{"help"}, nil)
	f.edge(graphstore.EdgeTypeContains, "com.util", "com.util.Util")

	f.edge(graphstore.EdgeTypeCalls, "com.ex.Leaf.run", "com.ex.Base.a")
	f.edge(graphstore.EdgeTypeCalls, "com.ex.Leaf.run", "com.util.Util.help")
	return f
}
