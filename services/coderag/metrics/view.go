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
	"errors"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

// GraphReader is the read surface of the graph store the engine uses.
// *graphstore.Store satisfies it.
type GraphReader interface {
	GetNode(ctx context.Context, projectID, id string) (*graphstore.CodeNode, error)
	FindNodesByType(ctx context.Context, projectID string, t graphstore.NodeType) ([]*graphstore.CodeNode, error)
	FindNodesByName(ctx context.Context, projectID, name string) ([]*graphstore.CodeNode, error)
	FindEdgesBySource(ctx context.Context, projectID, source string) ([]*graphstore.CodeEdge, error)
	FindEdgesByTarget(ctx context.Context, projectID, target string) ([]*graphstore.CodeEdge, error)
	FindInheritanceHierarchy(ctx context.Context, projectID, className string) ([]*graphstore.CodeNode, error)
}

// dependencyEdges are the edge types that couple two classes.
var dependencyEdges = map[graphstore.EdgeType]bool{
	graphstore.EdgeTypeCalls:      true,
	graphstore.EdgeTypeReferences: true,
	graphstore.EdgeTypeImplements: true,
	graphstore.EdgeTypeExtends:    true,
}

// graphView is a memoising read view over one project, scoped to a single
// engine call. Safe for concurrent use.
type graphView struct {
	reader    GraphReader
	projectID string

	nodes  *lru.Cache[string, *graphstore.CodeNode]
	out    *lru.Cache[string, []*graphstore.CodeEdge]
	in     *lru.Cache[string, []*graphstore.CodeEdge]
	owners *lru.Cache[string, string]

	classesOnce sync.Once
	classes     []*graphstore.CodeNode
	classesErr  error
}

func newGraphView(reader GraphReader, projectID string, size int) (*graphView, error) {
	nodes, err := lru.New[string, *graphstore.CodeNode](size)
	if err != nil {
		return nil, err
	}
	out, err := lru.New[string, []*graphstore.CodeEdge](size)
	if err != nil {
		return nil, err
	}
	in, err := lru.New[string, []*graphstore.CodeEdge](size)
	if err != nil {
		return nil, err
	}
	owners, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &graphView{
		reader:    reader,
		projectID: projectID,
		nodes:     nodes,
		out:       out,
		in:        in,
		owners:    owners,
	}, nil
}

// node returns the node with id, or nil when it does not exist.
func (v *graphView) node(ctx context.Context, id string) (*graphstore.CodeNode, error) {
	if n, ok := v.nodes.Get(id); ok {
		return n, nil
	}
	n, err := v.reader.GetNode(ctx, v.projectID, id)
	if errors.Is(err, graphstore.ErrNotFound) {
		n, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.nodes.Add(id, n)
	return n, nil
}

// outgoing returns the project-internal edges leaving id.
func (v *graphView) outgoing(ctx context.Context, id string) ([]*graphstore.CodeEdge, error) {
	if edges, ok := v.out.Get(id); ok {
		return edges, nil
	}
	all, err := v.reader.FindEdgesBySource(ctx, v.projectID, id)
	if err != nil {
		return nil, err
	}
	edges := make([]*graphstore.CodeEdge, 0, len(all))
	for _, e := range all {
		if !e.IsCrossProject() {
			edges = append(edges, e)
		}
	}
	v.out.Add(id, edges)
	return edges, nil
}

// incoming returns the project-internal edges pointing at id.
func (v *graphView) incoming(ctx context.Context, id string) ([]*graphstore.CodeEdge, error) {
	if edges, ok := v.in.Get(id); ok {
		return edges, nil
	}
	edges, err := v.reader.FindEdgesByTarget(ctx, v.projectID, id)
	if err != nil {
		return nil, err
	}
	v.in.Add(id, edges)
	return edges, nil
}

// owner returns the ID of the class that owns id: id itself when it is
// class-like, else a class containing it, else a class it belongs to.
// Returns "" when there is none.
func (v *graphView) owner(ctx context.Context, id string) (string, error) {
	if o, ok := v.owners.Get(id); ok {
		return o, nil
	}
	o, err := v.findOwner(ctx, id)
	if err != nil {
		return "", err
	}
	v.owners.Add(id, o)
	return o, nil
}

func (v *graphView) findOwner(ctx context.Context, id string) (string, error) {
	n, err := v.node(ctx, id)
	if err != nil || n == nil {
		return "", err
	}
	if n.Type.IsClassLike() {
		return n.ID, nil
	}

	in, err := v.incoming(ctx, id)
	if err != nil {
		return "", err
	}
	for _, e := range in {
		if e.Type != graphstore.EdgeTypeContains {
			continue
		}
		if c, err := v.classLike(ctx, e.Source); err != nil || c != "" {
			return c, err
		}
	}

	out, err := v.outgoing(ctx, id)
	if err != nil {
		return "", err
	}
	for _, e := range out {
		if e.Type != graphstore.EdgeTypeBelongsTo {
			continue
		}
		if c, err := v.classLike(ctx, e.Target); err != nil || c != "" {
			return c, err
		}
	}
	return "", nil
}

// classLike returns id when it names a class-like node, else "".
func (v *graphView) classLike(ctx context.Context, id string) (string, error) {
	n, err := v.node(ctx, id)
	if err != nil || n == nil || !n.Type.IsClassLike() {
		return "", err
	}
	return n.ID, nil
}

// contained returns the nodes of type t the class contains, ordered by ID.
func (v *graphView) contained(ctx context.Context, classID string, t graphstore.NodeType) ([]string, error) {
	out, err := v.outgoing(ctx, classID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range out {
		if e.Type != graphstore.EdgeTypeContains || seen[e.Target] {
			continue
		}
		n, err := v.node(ctx, e.Target)
		if err != nil {
			return nil, err
		}
		if n != nil && n.Type == t {
			seen[n.ID] = true
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// members returns every node the class contains.
func (v *graphView) members(ctx context.Context, classID string) ([]string, error) {
	out, err := v.outgoing(ctx, classID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range out {
		if e.Type == graphstore.EdgeTypeContains {
			ids = append(ids, e.Target)
		}
	}
	return ids, nil
}

// dependencies returns the classes classID depends on (efferent) and the
// classes depending on it (afferent). Edges on the class's members are
// lifted to their owning classes. Self-references are dropped.
func (v *graphView) dependencies(ctx context.Context, classID string) (efferent, afferent map[string]bool, err error) {
	members, err := v.members(ctx, classID)
	if err != nil {
		return nil, nil, err
	}

	efferent = make(map[string]bool)
	afferent = make(map[string]bool)
	for _, id := range append([]string{classID}, members...) {
		out, err := v.outgoing(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range out {
			if !dependencyEdges[e.Type] {
				continue
			}
			o, err := v.owner(ctx, e.Target)
			if err != nil {
				return nil, nil, err
			}
			if o != "" && o != classID {
				efferent[o] = true
			}
		}

		in, err := v.incoming(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range in {
			if !dependencyEdges[e.Type] {
				continue
			}
			o, err := v.owner(ctx, e.Source)
			if err != nil {
				return nil, nil, err
			}
			if o != "" && o != classID {
				afferent[o] = true
			}
		}
	}
	return efferent, afferent, nil
}

// allClasses returns every class-like node in the project, ordered by ID.
func (v *graphView) allClasses(ctx context.Context) ([]*graphstore.CodeNode, error) {
	v.classesOnce.Do(func() {
		var classes []*graphstore.CodeNode
		for _, t := range graphstore.AllNodeTypes {
			if !t.IsClassLike() {
				continue
			}
			nodes, err := v.reader.FindNodesByType(ctx, v.projectID, t)
			if err != nil {
				v.classesErr = err
				return
			}
			classes = append(classes, nodes...)
		}
		sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
		for _, c := range classes {
			v.nodes.Add(c.ID, c)
		}
		v.classes = classes
	})
	return v.classes, v.classesErr
}
