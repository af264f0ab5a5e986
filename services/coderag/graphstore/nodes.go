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
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// AddNode creates a node in its project.
//
// Description:
//
//	Validates the node, rejects duplicates within the project, writes the
//	record together with its project-scoped label and name index entries,
//	and reads the result back.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	node - The node to create. ID, ProjectID, Type, and Name are required.
//
// Outputs:
//
//	*CodeNode - The stored node. Modifiers is never nil.
//	error - ErrInvalidNode, ErrConflict, ErrConnectivity, or ErrNotCreated.
//
// Thread Safety: Safe for concurrent use. Of two concurrent creates with
// the same ID exactly one succeeds.
func (s *Store) AddNode(ctx context.Context, node *CodeNode) (*CodeNode, error) {
	if err := ValidateNode(node); err != nil {
		return nil, err
	}
	n := cloneNode(node)

	err := s.update(ctx, "AddNode", n.ProjectID, func(txn *badger.Txn) error {
		found, err := exists(txn, nodeKey(n.ProjectID, n.ID))
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: node %s in project %s", ErrConflict, n.ID, n.ProjectID)
		}
		return putNode(txn, n)
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.GetNode(ctx, n.ProjectID, n.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s in project %s", ErrNotCreated, n.ID, n.ProjectID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("node created",
		slog.String("project_id", n.ProjectID),
		slog.String("node_id", n.ID),
		slog.String("type", string(n.Type)),
	)
	return stored, nil
}

// GetNode returns a node by ID. Returns ErrNotFound if absent.
func (s *Store) GetNode(ctx context.Context, projectID, id string) (*CodeNode, error) {
	var node *CodeNode
	err := s.view(ctx, "GetNode", projectID, func(txn *badger.Txn) error {
		var err error
		node, err = getNode(txn, projectID, id)
		return err
	})
	return node, err
}

// UpdateNode applies a partial update to a node.
//
// Description:
//
//	Mutable fields are name, qualified_name, description, source_file,
//	start_line, end_line, modifiers, and attributes. id, project_id, and
//	type are immutable and, like unknown keys, are ignored. Attributes are
//	replaced wholesale.
//
// Outputs:
//
//	*CodeNode - The node after the update.
//	error - ErrInvalidUpdate when no mutable field is present or a value has
//	the wrong type; ErrNotFound when no node matches.
func (s *Store) UpdateNode(ctx context.Context, projectID, id string, updates Updates) (*CodeNode, error) {
	keys, err := mutableKeys(updates, nodeSetters)
	if err != nil {
		return nil, err
	}

	var updated *CodeNode
	err = s.update(ctx, "UpdateNode", projectID, func(txn *badger.Txn) error {
		current, err := getNode(txn, projectID, id)
		if err != nil {
			return err
		}
		next := cloneNode(current)
		if err := applyUpdates(next, updates, keys, nodeSetters); err != nil {
			return err
		}
		if next.EndLine > 0 && next.EndLine < next.StartLine {
			return fmt.Errorf("%w: end_line %d before start_line %d", ErrInvalidUpdate, next.EndLine, next.StartLine)
		}
		if err := deleteNodeIndexes(txn, current); err != nil {
			return err
		}
		if err := putNode(txn, next); err != nil {
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

// DeleteNode removes a node and its index entries. Edges touching the node
// are left in place. Returns false if the node did not exist.
func (s *Store) DeleteNode(ctx context.Context, projectID, id string) (bool, error) {
	deleted := false
	err := s.update(ctx, "DeleteNode", projectID, func(txn *badger.Txn) error {
		deleted = false
		current, err := getNode(txn, projectID, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := deleteNodeIndexes(txn, current); err != nil {
			return err
		}
		if err := txn.Delete(nodeKey(projectID, id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// FindNodesByType returns the project's nodes of type t, ordered by ID.
func (s *Store) FindNodesByType(ctx context.Context, projectID string, t NodeType) ([]*CodeNode, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown node type %q", ErrInvalidNode, t)
	}
	var nodes []*CodeNode
	err := s.view(ctx, "FindNodesByType", projectID, func(txn *badger.Txn) error {
		var err error
		nodes, err = nodesByIndex(txn, projectID, labelPrefix(projectID, t))
		return err
	})
	return nodes, err
}

// FindNodesByName returns the project's nodes whose name, or the simple name
// of whose ID, equals name. Ordered by ID.
func (s *Store) FindNodesByName(ctx context.Context, projectID, name string) ([]*CodeNode, error) {
	var nodes []*CodeNode
	err := s.view(ctx, "FindNodesByName", projectID, func(txn *badger.Txn) error {
		var err error
		nodes, err = nodesByName(txn, projectID, name)
		return err
	})
	return nodes, err
}

// SearchNodes returns the project's nodes whose name, qualified name, or
// description contains query, case-insensitively. limit <= 0 means no limit.
func (s *Store) SearchNodes(ctx context.Context, projectID, query string, limit int) ([]*CodeNode, error) {
	var nodes []*CodeNode
	err := s.view(ctx, "SearchNodes", projectID, func(txn *badger.Txn) error {
		var err error
		nodes, err = scanNodes(txn, nodePrefix(projectID), matchesQuery(query))
		return err
	})
	return truncate(nodes, limit), err
}

// FindNodesByTypeAcrossProjects returns nodes of type t from every project,
// ordered by project then ID.
func (s *Store) FindNodesByTypeAcrossProjects(ctx context.Context, t NodeType) ([]*CodeNode, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown node type %q", ErrInvalidNode, t)
	}
	var nodes []*CodeNode
	err := s.view(ctx, "FindNodesByTypeAcrossProjects", "*", func(txn *badger.Txn) error {
		var err error
		nodes, err = scanNodes(txn, allNodesPrefix(), func(n *CodeNode) bool { return n.Type == t })
		return err
	})
	return nodes, err
}

// SearchNodesAcrossProjects is SearchNodes over every project.
func (s *Store) SearchNodesAcrossProjects(ctx context.Context, query string, limit int) ([]*CodeNode, error) {
	var nodes []*CodeNode
	err := s.view(ctx, "SearchNodesAcrossProjects", "*", func(txn *badger.Txn) error {
		var err error
		nodes, err = scanNodes(txn, allNodesPrefix(), matchesQuery(query))
		return err
	})
	return truncate(nodes, limit), err
}

// putNode writes the node record and its index entries.
func putNode(txn *badger.Txn, n *CodeNode) error {
	data, err := encodeNode(n)
	if err != nil {
		return err
	}
	if err := txn.Set(nodeKey(n.ProjectID, n.ID), data); err != nil {
		return err
	}
	if err := txn.Set(labelKey(n.ProjectID, n.Type, n.ID), nil); err != nil {
		return err
	}
	for _, term := range nameIndexTerms(n) {
		if err := txn.Set(nameKey(n.ProjectID, term, n.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

// deleteNodeIndexes removes the label and name index entries for n.
func deleteNodeIndexes(txn *badger.Txn, n *CodeNode) error {
	if err := txn.Delete(labelKey(n.ProjectID, n.Type, n.ID)); err != nil {
		return err
	}
	for _, term := range nameIndexTerms(n) {
		if err := txn.Delete(nameKey(n.ProjectID, term, n.ID)); err != nil {
			return err
		}
	}
	return nil
}

func nodesByName(txn *badger.Txn, projectID, name string) ([]*CodeNode, error) {
	if name == "" {
		return []*CodeNode{}, nil
	}
	nodes, err := nodesByIndex(txn, projectID, namePrefix(projectID, name))
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func matchesQuery(query string) func(*CodeNode) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(n *CodeNode) bool {
		return strings.Contains(strings.ToLower(n.Name), q) ||
			strings.Contains(strings.ToLower(n.QualifiedName), q) ||
			strings.Contains(strings.ToLower(n.Description), q)
	}
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func cloneNode(n *CodeNode) *CodeNode {
	c := *n
	if n.Modifiers == nil {
		c.Modifiers = []string{}
	} else {
		c.Modifiers = append([]string{}, n.Modifiers...)
	}
	if n.Attributes != nil {
		c.Attributes = make(Attributes, len(n.Attributes))
		for k, v := range n.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
