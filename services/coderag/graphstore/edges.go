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
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
)

// AddEdge creates an edge between two existing nodes.
//
// Description:
//
//	The source must match a node ID exactly in the edge's project. The
//	target is resolved in TargetProject() through the resolution chain:
//	exact ID first, then, for implements edges, the simple-name fallback.
//	When the fallback fires the stored edge points at the resolved ID.
//	Cross-project targets must match exactly.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	edge - The edge to create.
//
// Outputs:
//
//	*CodeEdge - The stored edge.
//	error - ErrInvalidEdge, ErrConflict, ErrEndpointNotFound, or
//	ErrConnectivity.
func (s *Store) AddEdge(ctx context.Context, edge *CodeEdge) (*CodeEdge, error) {
	if err := ValidateEdge(edge); err != nil {
		return nil, err
	}
	e := cloneEdge(edge)
	var strategy string

	err := s.update(ctx, "AddEdge", e.ProjectID, func(txn *badger.Txn) error {
		e.Target = edge.Target
		found, err := exists(txn, edgeKey(e.ProjectID, e.ID))
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: edge %s in project %s", ErrConflict, e.ID, e.ProjectID)
		}

		lookup := txnLookup{txn: txn}
		if _, _, err := resolveEndpoint(lookup, sourceStrategies, e.Type, e.ProjectID, e.Source); err != nil {
			return err
		}

		targetStrategies := s.resolvers
		if e.IsCrossProject() {
			targetStrategies = sourceStrategies
		}
		target, used, err := resolveEndpoint(lookup, targetStrategies, e.Type, e.TargetProject(), e.Target)
		if err != nil {
			return err
		}
		e.Target = target
		strategy = used

		return putEdge(txn, e)
	})
	if err != nil {
		return nil, err
	}

	if strategy != "" && strategy != (ExactIDStrategy{}).Name() {
		s.logger.Debug("edge target resolved by fallback",
			slog.String("project_id", e.ProjectID),
			slog.String("edge_id", e.ID),
			slog.String("reference", edge.Target),
			slog.String("resolved", e.Target),
			slog.String("strategy", strategy),
		)
	}
	return e, nil
}

// sourceStrategies resolves edge sources. Sources never fall back.
var sourceStrategies = []ResolutionStrategy{ExactIDStrategy{}}

// GetEdge returns an edge by ID. Returns ErrNotFound if absent.
func (s *Store) GetEdge(ctx context.Context, projectID, id string) (*CodeEdge, error) {
	var edge *CodeEdge
	err := s.view(ctx, "GetEdge", projectID, func(txn *badger.Txn) error {
		var err error
		edge, err = getEdge(txn, projectID, id)
		return err
	})
	return edge, err
}

// UpdateEdge applies a partial update to an edge.
//
// Description:
//
//	Mutable fields are type and attributes. id, project_id, source,
//	target, and target_project_id are immutable and ignored.
//
// Outputs:
//
//	*CodeEdge - The edge after the update.
//	error - ErrInvalidUpdate or ErrNotFound.
func (s *Store) UpdateEdge(ctx context.Context, projectID, id string, updates Updates) (*CodeEdge, error) {
	keys, err := mutableKeys(updates, edgeSetters)
	if err != nil {
		return nil, err
	}

	var updated *CodeEdge
	err = s.update(ctx, "UpdateEdge", projectID, func(txn *badger.Txn) error {
		current, err := getEdge(txn, projectID, id)
		if err != nil {
			return err
		}
		next := cloneEdge(current)
		if err := applyUpdates(next, updates, keys, edgeSetters); err != nil {
			return err
		}
		if next.Source == next.Target && !next.IsCrossProject() && !allowsSelfLoop(next.Type) {
			return fmt.Errorf("%w: %s edge cannot be self-referential", ErrInvalidUpdate, next.Type)
		}
		if err := deleteEdgeIndexes(txn, current); err != nil {
			return err
		}
		if err := putEdge(txn, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEdge removes an edge. Returns false if it did not exist.
func (s *Store) DeleteEdge(ctx context.Context, projectID, id string) (bool, error) {
	deleted := false
	err := s.update(ctx, "DeleteEdge", projectID, func(txn *badger.Txn) error {
		deleted = false
		current, err := getEdge(txn, projectID, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := deleteEdgeIndexes(txn, current); err != nil {
			return err
		}
		if err := txn.Delete(edgeKey(projectID, id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// FindEdgesByType returns the project's edges of type t, ordered by ID.
func (s *Store) FindEdgesByType(ctx context.Context, projectID string, t EdgeType) ([]*CodeEdge, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown edge type %q", ErrInvalidEdge, t)
	}
	var edges []*CodeEdge
	err := s.view(ctx, "FindEdgesByType", projectID, func(txn *badger.Txn) error {
		var err error
		edges, err = edgesByIndex(txn, edgeTypePrefix(projectID, t), func(key []byte) (string, string) {
			return projectID, lastSegment(key)
		})
		return err
	})
	return edges, err
}

// FindEdgesBySource returns the project's edges leaving source.
func (s *Store) FindEdgesBySource(ctx context.Context, projectID, source string) ([]*CodeEdge, error) {
	var edges []*CodeEdge
	err := s.view(ctx, "FindEdgesBySource", projectID, func(txn *badger.Txn) error {
		var err error
		edges, err = outgoingEdges(txn, projectID, source)
		return err
	})
	return edges, err
}

// FindEdgesByTarget returns the project's edges pointing at target.
// Cross-project edges owned by other projects are excluded; use
// FindCrossProjectDependencies for those.
func (s *Store) FindEdgesByTarget(ctx context.Context, projectID, target string) ([]*CodeEdge, error) {
	edges := []*CodeEdge{}
	err := s.view(ctx, "FindEdgesByTarget", projectID, func(txn *badger.Txn) error {
		in, err := incomingEdges(txn, projectID, target)
		if err != nil {
			return err
		}
		for _, e := range in {
			if e.ProjectID == projectID {
				edges = append(edges, e)
			}
		}
		return nil
	})
	return edges, err
}

// FindEdgesByTypeAcrossProjects returns edges of type t from every project,
// ordered by project then ID.
func (s *Store) FindEdgesByTypeAcrossProjects(ctx context.Context, t EdgeType) ([]*CodeEdge, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown edge type %q", ErrInvalidEdge, t)
	}
	var edges []*CodeEdge
	err := s.view(ctx, "FindEdgesByTypeAcrossProjects", "*", func(txn *badger.Txn) error {
		var err error
		edges, err = scanEdges(txn, allEdgesPrefix(), func(e *CodeEdge) bool { return e.Type == t })
		return err
	})
	return edges, err
}

// FindCrossProjectDependencies returns every edge whose endpoints live in
// different projects, with both endpoint nodes when they still exist.
// Endpoints are keyed by their project-scoped IDs.
func (s *Store) FindCrossProjectDependencies(ctx context.Context) ([]*CrossProjectDependency, error) {
	deps := []*CrossProjectDependency{}
	err := s.view(ctx, "FindCrossProjectDependencies", "*", func(txn *badger.Txn) error {
		edges, err := scanEdges(txn, allEdgesPrefix(), func(e *CodeEdge) bool { return e.IsCrossProject() })
		if err != nil {
			return err
		}
		for _, e := range edges {
			dep := &CrossProjectDependency{
				Edge:      e,
				SourceKey: ScopedID(e.ProjectID, e.Source),
				TargetKey: ScopedID(e.TargetProject(), e.Target),
			}
			if dep.Source, err = optionalNode(txn, e.ProjectID, e.Source); err != nil {
				return err
			}
			if dep.Target, err = optionalNode(txn, e.TargetProject(), e.Target); err != nil {
				return err
			}
			deps = append(deps, dep)
		}
		return nil
	})
	return deps, err
}

// putEdge writes the edge record and its index entries.
func putEdge(txn *badger.Txn, e *CodeEdge) error {
	data, err := encodeEdge(e)
	if err != nil {
		return err
	}
	entries := [][]byte{
		outKey(e.ProjectID, e.Source, e.ID),
		inKey(e.TargetProject(), e.Target, e.ProjectID, e.ID),
		edgeTypeKey(e.ProjectID, e.Type, e.ID),
	}
	if err := txn.Set(edgeKey(e.ProjectID, e.ID), data); err != nil {
		return err
	}
	for _, key := range entries {
		if err := txn.Set(key, nil); err != nil {
			return err
		}
	}
	return nil
}

// deleteEdgeIndexes removes the adjacency and type index entries for e.
func deleteEdgeIndexes(txn *badger.Txn, e *CodeEdge) error {
	for _, key := range [][]byte{
		outKey(e.ProjectID, e.Source, e.ID),
		inKey(e.TargetProject(), e.Target, e.ProjectID, e.ID),
		edgeTypeKey(e.ProjectID, e.Type, e.ID),
	} {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// edgesByIndex loads the edges referenced by index keys under prefix.
// locate extracts the owning project and edge ID from a key. Entries whose
// edge is gone are skipped.
func edgesByIndex(txn *badger.Txn, prefix []byte, locate func(key []byte) (projectID, id string)) ([]*CodeEdge, error) {
	type ref struct{ projectID, id string }
	var refs []ref
	err := storage.ScanKeys(txn, prefix, func(key []byte) error {
		p, id := locate(key)
		refs = append(refs, ref{p, id})
		return nil
	})
	if err != nil {
		return nil, err
	}

	edges := make([]*CodeEdge, 0, len(refs))
	for _, r := range refs {
		e, err := getEdge(txn, r.projectID, r.id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func outgoingEdges(txn *badger.Txn, projectID, source string) ([]*CodeEdge, error) {
	return edgesByIndex(txn, outPrefix(projectID, source), func(key []byte) (string, string) {
		return projectID, lastSegment(key)
	})
}

func incomingEdges(txn *badger.Txn, projectID, target string) ([]*CodeEdge, error) {
	return edgesByIndex(txn, inPrefix(projectID, target), func(key []byte) (string, string) {
		segs := keySegments(key)
		return segs[len(segs)-2], segs[len(segs)-1]
	})
}

// optionalNode loads a node, returning nil without error if it is absent.
func optionalNode(txn *badger.Txn, projectID, id string) (*CodeNode, error) {
	n, err := getNode(txn, projectID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return n, err
}

func cloneEdge(e *CodeEdge) *CodeEdge {
	c := *e
	if c.TargetProjectID == c.ProjectID {
		c.TargetProjectID = ""
	}
	if e.Attributes != nil {
		c.Attributes = make(Attributes, len(e.Attributes))
		for k, v := range e.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
