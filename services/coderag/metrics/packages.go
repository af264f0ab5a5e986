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
	"strings"
	"time"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

// CalculatePackageMetrics computes Martin's metrics for a package.
//
// Description:
//
//	A package's classes are the class-like nodes a package node of that
//	name contains or that belong to it, plus every class whose "package"
//	attribute or qualified-name prefix equals packageName. Ca and Ce count
//	distinct classes outside the package. Instability is 0 when Ca+Ce is 0
//	and abstractness is 0 when the package has no classes.
//
// Outputs:
//
//	*PackageMetrics - The computed metrics.
//	error - graphstore.ErrNotFound when neither a package node nor any
//	member class exists.
func (e *Engine) CalculatePackageMetrics(ctx context.Context, projectID, packageName string) (*PackageMetrics, error) {
	ctx, span := startComputeSpan(ctx, "CalculatePackageMetrics", projectID)
	start := time.Now()

	m, err := e.calculatePackage(ctx, projectID, packageName)

	recordComputeMetrics(ctx, "package", time.Since(start), err)
	endSpan(span, err)
	return m, err
}

// AssessPackage computes a package's metrics and its findings.
func (e *Engine) AssessPackage(ctx context.Context, projectID, packageName string) (*PackageAssessment, error) {
	m, err := e.CalculatePackageMetrics(ctx, projectID, packageName)
	if err != nil {
		return nil, err
	}
	a := AssessPackage(*m)
	return &a, nil
}

func (e *Engine) calculatePackage(ctx context.Context, projectID, packageName string) (*PackageMetrics, error) {
	packageName = strings.TrimSpace(packageName)
	if packageName == "" {
		return nil, fmt.Errorf("%w: package name is required", ErrInvalidInput)
	}
	view, err := e.newView(projectID)
	if err != nil {
		return nil, err
	}

	members, declared, err := e.packageMembers(ctx, view, packageName)
	if err != nil {
		return nil, err
	}
	if !declared && len(members) == 0 {
		return nil, fmt.Errorf("%w: package %s in project %s", graphstore.ErrNotFound, packageName, projectID)
	}

	afferent := make(map[string]bool)
	efferent := make(map[string]bool)
	abstract := 0
	for id, class := range members {
		if isAbstract(class) {
			abstract++
		}
		out, in, err := view.dependencies(ctx, id)
		if err != nil {
			return nil, err
		}
		for dep := range out {
			if members[dep] == nil {
				efferent[dep] = true
			}
		}
		for dep := range in {
			if members[dep] == nil {
				afferent[dep] = true
			}
		}
	}

	m := &PackageMetrics{
		Package:         packageName,
		Classes:         len(members),
		AbstractClasses: abstract,
		Ca:              len(afferent),
		Ce:              len(efferent),
	}
	m.Instability, m.Abstractness, m.Distance = packageRatios(m.Ca, m.Ce, abstract, m.Classes)
	return m, nil
}

// packageMembers returns the package's classes keyed by ID, and whether a
// package node with that name exists.
func (e *Engine) packageMembers(ctx context.Context, view *graphView, name string) (map[string]*graphstore.CodeNode, bool, error) {
	members := make(map[string]*graphstore.CodeNode)

	pkgNodes, err := e.packageNodes(ctx, view, name)
	if err != nil {
		return nil, false, err
	}
	for _, pkg := range pkgNodes {
		out, err := view.outgoing(ctx, pkg.ID)
		if err != nil {
			return nil, false, err
		}
		for _, edge := range out {
			if edge.Type != graphstore.EdgeTypeContains {
				continue
			}
			if err := addClassMember(ctx, view, members, edge.Target); err != nil {
				return nil, false, err
			}
		}

		in, err := view.incoming(ctx, pkg.ID)
		if err != nil {
			return nil, false, err
		}
		for _, edge := range in {
			if edge.Type != graphstore.EdgeTypeBelongsTo {
				continue
			}
			if err := addClassMember(ctx, view, members, edge.Source); err != nil {
				return nil, false, err
			}
		}
	}

	classes, err := view.allClasses(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, c := range classes {
		if graphstore.PackageOf(c) == name {
			members[c.ID] = c
		}
	}
	return members, len(pkgNodes) > 0, nil
}

// packageNodes returns package nodes whose ID or name is name.
func (e *Engine) packageNodes(ctx context.Context, view *graphView, name string) ([]*graphstore.CodeNode, error) {
	var pkgs []*graphstore.CodeNode
	seen := make(map[string]bool)

	byID, err := view.node(ctx, name)
	if err != nil {
		return nil, err
	}
	if byID != nil && byID.Type == graphstore.NodeTypePackage {
		pkgs = append(pkgs, byID)
		seen[byID.ID] = true
	}

	named, err := e.reader.FindNodesByName(ctx, view.projectID, name)
	if err != nil {
		return nil, err
	}
	for _, n := range named {
		if n.Type == graphstore.NodeTypePackage && n.Name == name && !seen[n.ID] {
			pkgs = append(pkgs, n)
			seen[n.ID] = true
		}
	}
	return pkgs, nil
}

func addClassMember(ctx context.Context, view *graphView, members map[string]*graphstore.CodeNode, id string) error {
	n, err := view.node(ctx, id)
	if err != nil {
		return err
	}
	if n != nil && n.Type.IsClassLike() {
		members[n.ID] = n
	}
	return nil
}

// isAbstract reports whether a class counts toward abstractness.
func isAbstract(n *graphstore.CodeNode) bool {
	if n.Type == graphstore.NodeTypeInterface || n.HasModifier("abstract") {
		return true
	}
	for _, key := range []string{"is_abstract", "abstract"} {
		if v, ok := n.Attributes[key].(bool); ok && v {
			return true
		}
	}
	return false
}
