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
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
)

// newTestStore returns a Store over a fresh in-memory database.
func newTestStore(t *testing.T, opts ...Option) (*Store, *storage.DB) {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(db, opts...), db
}

func testNode(projectID, id string, t NodeType) *CodeNode {
	return &CodeNode{
		ID:            id,
		ProjectID:     projectID,
		Type:          t,
		Name:          SimpleName(id),
		QualifiedName: id,
		SourceFile:    "src/" + SimpleName(id) + ".java",
		StartLine:     1,
		EndLine:       10,
	}
}

func testEdge(projectID, id string, t EdgeType, source, target string) *CodeEdge {
	return &CodeEdge{
		ID:        id,
		ProjectID: projectID,
		Type:      t,
		Source:    source,
		Target:    target,
	}
}

func mustAddNode(t *testing.T, s *Store, n *CodeNode) *CodeNode {
	t.Helper()
	stored, err := s.AddNode(context.Background(), n)
	require.NoError(t, err)
	return stored
}

func mustAddEdge(t *testing.T, s *Store, e *CodeEdge) *CodeEdge {
	t.Helper()
	stored, err := s.AddEdge(context.Background(), e)
	require.NoError(t, err)
	return stored
}

func nodeIDs(nodes []*CodeNode) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func edgeIDs(edges []*CodeEdge) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ID)
	}
	return ids
}
