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
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// NodeLookup is the read access a ResolutionStrategy gets while an edge is
// being created.
type NodeLookup interface {
	// Exists reports whether a node with exactly this ID exists.
	Exists(projectID, id string) (bool, error)

	// FindByName returns nodes whose name or ID simple name equals name,
	// ordered by ID.
	FindByName(projectID, name string) ([]*CodeNode, error)
}

// ResolutionStrategy maps an edge endpoint reference onto a stored node ID.
//
// Strategies run in order and the first to resolve wins, so new fallbacks
// (for example, import-aware matching) can be added without touching
// AddEdge.
type ResolutionStrategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Applies reports whether the strategy may be used for edges of type t.
	Applies(t EdgeType) bool

	// Resolve returns the node ID ref refers to, or ok=false.
	Resolve(lookup NodeLookup, projectID, ref string) (id string, ok bool, err error)
}

// DefaultResolutionStrategies returns exact ID matching followed by the
// simple-name fallback for implements edges.
func DefaultResolutionStrategies() []ResolutionStrategy {
	return []ResolutionStrategy{
		ExactIDStrategy{},
		SimpleNameStrategy{EdgeTypes: []EdgeType{EdgeTypeImplements}},
	}
}

// ExactIDStrategy resolves a reference that is already a node ID.
type ExactIDStrategy struct{}

// Name implements ResolutionStrategy.
func (ExactIDStrategy) Name() string { return "exact_id" }

// Applies implements ResolutionStrategy.
func (ExactIDStrategy) Applies(EdgeType) bool { return true }

// Resolve implements ResolutionStrategy.
func (ExactIDStrategy) Resolve(lookup NodeLookup, projectID, ref string) (string, bool, error) {
	found, err := lookup.Exists(projectID, ref)
	if err != nil || !found {
		return "", false, err
	}
	return ref, true, nil
}

// SimpleNameStrategy resolves a qualified reference by its unqualified name.
//
// "com.example.Foo" and "Foo" both resolve to a node named Foo. When several
// nodes share the name, interfaces win over other class-like nodes, which
// win over everything else; ties go to the lowest ID.
type SimpleNameStrategy struct {
	EdgeTypes []EdgeType
}

// Name implements ResolutionStrategy.
func (SimpleNameStrategy) Name() string { return "simple_name" }

// Applies implements ResolutionStrategy.
func (s SimpleNameStrategy) Applies(t EdgeType) bool {
	for _, et := range s.EdgeTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Resolve implements ResolutionStrategy.
func (SimpleNameStrategy) Resolve(lookup NodeLookup, projectID, ref string) (string, bool, error) {
	simple := SimpleName(ref)
	if simple == "" {
		return "", false, nil
	}
	candidates, err := lookup.FindByName(projectID, simple)
	if err != nil || len(candidates) == 0 {
		return "", false, err
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if resolutionRank(c) < resolutionRank(best) {
			best = c
		}
	}
	return best.ID, true, nil
}

func resolutionRank(n *CodeNode) int {
	switch {
	case n.Type == NodeTypeInterface:
		return 0
	case n.Type.IsClassLike():
		return 1
	default:
		return 2
	}
}

// txnLookup implements NodeLookup over a Badger transaction.
type txnLookup struct {
	txn *badger.Txn
}

func (l txnLookup) Exists(projectID, id string) (bool, error) {
	return exists(l.txn, nodeKey(projectID, id))
}

func (l txnLookup) FindByName(projectID, name string) ([]*CodeNode, error) {
	return nodesByName(l.txn, projectID, name)
}

// resolveEndpoint resolves ref with the strategies that apply to t.
// Returns ErrEndpointNotFound when none does.
func resolveEndpoint(lookup NodeLookup, strategies []ResolutionStrategy, t EdgeType, projectID, ref string) (string, string, error) {
	for _, strategy := range strategies {
		if !strategy.Applies(t) {
			continue
		}
		id, ok, err := strategy.Resolve(lookup, projectID, ref)
		if err != nil {
			return "", "", err
		}
		if ok {
			return id, strategy.Name(), nil
		}
	}
	return "", "", errEndpoint(projectID, ref)
}

func errEndpoint(projectID, ref string) error {
	return fmt.Errorf("%w: node %s in project %s", ErrEndpointNotFound, ref, projectID)
}
