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
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// FindClassesThatCallMethod returns the classes whose methods call a method.
//
// Description:
//
//	methodName matches method and function nodes by ID, name, or ID
//	simple name. For each incoming calls edge the caller's owning class is
//	collected: the caller itself when class-like, otherwise the class that
//	contains it or that it belongs to. Callers without an owning class are
//	skipped.
//
// Outputs:
//
//	[]*CodeNode - Distinct classes ordered by ID. Empty when nothing matches.
//	error - ErrConnectivity on storage failure.
func (s *Store) FindClassesThatCallMethod(ctx context.Context, projectID, methodName string) ([]*CodeNode, error) {
	classes := []*CodeNode{}
	err := s.view(ctx, "FindClassesThatCallMethod", projectID, func(txn *badger.Txn) error {
		methods, err := nodesMatching(txn, projectID, methodName, func(n *CodeNode) bool {
			return n.Type == NodeTypeMethod || n.Type == NodeTypeFunction
		})
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, m := range methods {
			edges, err := incomingEdges(txn, projectID, m.ID)
			if err != nil {
				return err
			}
			for _, e := range edges {
				if e.Type != EdgeTypeCalls || e.ProjectID != projectID {
					continue
				}
				owner, err := owningClass(txn, projectID, e.Source)
				if err != nil {
					return err
				}
				if owner != nil && !seen[owner.ID] {
					seen[owner.ID] = true
					classes = append(classes, owner)
				}
			}
		}
		return nil
	})
	sortNodes(classes)
	return classes, err
}

// FindClassesThatImplementInterface returns the class-like nodes with an
// implements edge to the named interface.
//
// interfaceName matches by ID, name, qualified name, or ID simple name. Edges
// created through the simple-name fallback already point at the resolved
// interface, so qualified and unqualified references are both found.
func (s *Store) FindClassesThatImplementInterface(ctx context.Context, projectID, interfaceName string) ([]*CodeNode, error) {
	classes := []*CodeNode{}
	err := s.view(ctx, "FindClassesThatImplementInterface", projectID, func(txn *badger.Txn) error {
		ifaces, err := nodesMatching(txn, projectID, interfaceName, func(n *CodeNode) bool {
			return n.Type.IsClassLike()
		})
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, iface := range ifaces {
			edges, err := incomingEdges(txn, projectID, iface.ID)
			if err != nil {
				return err
			}
			for _, e := range edges {
				if e.Type != EdgeTypeImplements || e.ProjectID != projectID || seen[e.Source] {
					continue
				}
				impl, err := optionalNode(txn, projectID, e.Source)
				if err != nil {
					return err
				}
				if impl != nil && impl.Type.IsClassLike() {
					seen[impl.ID] = true
					classes = append(classes, impl)
				}
			}
		}
		return nil
	})
	sortNodes(classes)
	return classes, err
}

// FindInheritanceHierarchy returns the ancestors of a class, nearest first.
//
// Description:
//
//	className resolves by ID first, then by name or qualified name. The
//	walk follows extends edges within the project. Where a class extends
//	several classes the one with the lowest ID is followed. The walk stops
//	at a root, a dangling edge, a cycle, or the configured maximum depth.
//
// Outputs:
//
//	[]*CodeNode - Ancestors, nearest first. Empty for a root class.
//	error - ErrNotFound when the class does not exist.
func (s *Store) FindInheritanceHierarchy(ctx context.Context, projectID, className string) ([]*CodeNode, error) {
	chain := []*CodeNode{}
	err := s.view(ctx, "FindInheritanceHierarchy", projectID, func(txn *badger.Txn) error {
		class, err := resolveClass(txn, projectID, className)
		if err != nil {
			return err
		}

		visited := map[string]bool{class.ID: true}
		current := class.ID
		for depth := 0; depth < s.maxHierarchyDepth; depth++ {
			parent, err := superclassOf(txn, projectID, current)
			if err != nil {
				return err
			}
			if parent == nil || visited[parent.ID] {
				return nil
			}
			visited[parent.ID] = true
			chain = append(chain, parent)
			current = parent.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// superclassOf returns the node id extends, preferring the lowest target ID.
// Returns nil when there is no resolvable superclass.
func superclassOf(txn *badger.Txn, projectID, id string) (*CodeNode, error) {
	edges, err := outgoingEdges(txn, projectID, id)
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, e := range edges {
		if e.Type == EdgeTypeExtends && !e.IsCrossProject() {
			targets = append(targets, e.Target)
		}
	}
	sort.Strings(targets)
	for _, t := range targets {
		n, err := optionalNode(txn, projectID, t)
		if err != nil || n != nil {
			return n, err
		}
	}
	return nil, nil
}

// resolveClass finds a class-like node by ID, then by name or qualified name.
func resolveClass(txn *badger.Txn, projectID, ref string) (*CodeNode, error) {
	matches, err := nodesMatching(txn, projectID, ref, func(n *CodeNode) bool {
		return n.Type.IsClassLike()
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: class %s in project %s", ErrNotFound, ref, projectID)
	}
	return matches[0], nil
}

// nodesMatching returns nodes accepted by keep that match ref. An exact ID
// match wins outright; otherwise name, ID simple name, and qualified name
// matches are returned ordered by ID.
func nodesMatching(txn *badger.Txn, projectID, ref string, keep func(*CodeNode) bool) ([]*CodeNode, error) {
	if ref == "" {
		return []*CodeNode{}, nil
	}

	exact, err := optionalNode(txn, projectID, ref)
	if err != nil {
		return nil, err
	}
	if exact != nil && keep(exact) {
		return []*CodeNode{exact}, nil
	}

	byName, err := nodesByName(txn, projectID, SimpleName(ref))
	if err != nil {
		return nil, err
	}
	matches := []*CodeNode{}
	for _, n := range byName {
		if !keep(n) {
			continue
		}
		if n.Name == ref || SimpleName(n.ID) == ref || n.QualifiedName == ref {
			matches = append(matches, n)
		}
	}
	return matches, nil
}

// owningClass returns the class-like node that owns id: the node itself when
// class-like, else a class that contains it, else a class it belongs to.
// Returns nil when there is none.
func owningClass(txn *badger.Txn, projectID, id string) (*CodeNode, error) {
	n, err := optionalNode(txn, projectID, id)
	if err != nil || n == nil {
		return nil, err
	}
	if n.Type.IsClassLike() {
		return n, nil
	}

	in, err := incomingEdges(txn, projectID, id)
	if err != nil {
		return nil, err
	}
	for _, e := range in {
		if e.Type != EdgeTypeContains || e.ProjectID != projectID {
			continue
		}
		owner, err := optionalNode(txn, projectID, e.Source)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.Type.IsClassLike() {
			return owner, nil
		}
	}

	out, err := outgoingEdges(txn, projectID, id)
	if err != nil {
		return nil, err
	}
	for _, e := range out {
		if e.Type != EdgeTypeBelongsTo || e.IsCrossProject() {
			continue
		}
		owner, err := optionalNode(txn, projectID, e.Target)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.Type.IsClassLike() {
			return owner, nil
		}
	}
	return nil, nil
}

func sortNodes(nodes []*CodeNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ProjectID != nodes[j].ProjectID {
			return nodes[i].ProjectID < nodes[j].ProjectID
		}
		return nodes[i].ID < nodes[j].ID
	})
}
