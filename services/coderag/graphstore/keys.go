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
	"bytes"
	"strings"
)

// Key layout. Segments are separated by NUL so IDs may contain any other byte.
//
//	node  | project | id                              -> nodeRecord
//	label | Project_<project>_<Type> | id             -> empty
//	name  | project | name | id                       -> empty
//	edge  | project | id                              -> edgeRecord
//	out   | project | source | id                     -> empty
//	in    | targetProject | target | project | id     -> empty
//	etype | project | type | id                       -> empty
//	proj  | id                                        -> Project JSON
const keySep = "\x00"

const (
	nsNode    = "node"
	nsLabel   = "label"
	nsName    = "name"
	nsEdge    = "edge"
	nsOut     = "out"
	nsIn      = "in"
	nsEdgeTyp = "etype"
	nsProject = "proj"
)

func makeKey(parts ...string) []byte {
	return []byte(strings.Join(parts, keySep))
}

func makePrefix(parts ...string) []byte {
	return []byte(strings.Join(parts, keySep) + keySep)
}

// keySegments splits a key into its segments.
func keySegments(key []byte) []string {
	parts := bytes.Split(key, []byte(keySep))
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}

// lastSegment returns the final segment of a key.
func lastSegment(key []byte) string {
	i := bytes.LastIndex(key, []byte(keySep))
	if i < 0 {
		return string(key)
	}
	return string(key[i+1:])
}

func nodeKey(projectID, id string) []byte { return makeKey(nsNode, projectID, id) }
func nodePrefix(projectID string) []byte  { return makePrefix(nsNode, projectID) }
func allNodesPrefix() []byte              { return makePrefix(nsNode) }

func labelKey(projectID string, t NodeType, id string) []byte {
	return makeKey(nsLabel, ProjectLabel(projectID, t), id)
}

func labelPrefix(projectID string, t NodeType) []byte {
	return makePrefix(nsLabel, ProjectLabel(projectID, t))
}

func nameKey(projectID, name, id string) []byte { return makeKey(nsName, projectID, name, id) }
func namePrefix(projectID, name string) []byte  { return makePrefix(nsName, projectID, name) }

func edgeKey(projectID, id string) []byte { return makeKey(nsEdge, projectID, id) }
func edgePrefix(projectID string) []byte  { return makePrefix(nsEdge, projectID) }
func allEdgesPrefix() []byte              { return makePrefix(nsEdge) }

func outKey(projectID, source, id string) []byte { return makeKey(nsOut, projectID, source, id) }
func outPrefix(projectID, source string) []byte  { return makePrefix(nsOut, projectID, source) }

func inKey(targetProject, target, projectID, id string) []byte {
	return makeKey(nsIn, targetProject, target, projectID, id)
}

func inPrefix(targetProject, target string) []byte { return makePrefix(nsIn, targetProject, target) }

func edgeTypeKey(projectID string, t EdgeType, id string) []byte {
	return makeKey(nsEdgeTyp, projectID, string(t), id)
}

func edgeTypePrefix(projectID string, t EdgeType) []byte {
	return makePrefix(nsEdgeTyp, projectID, string(t))
}

func projectKey(id string) []byte { return makeKey(nsProject, id) }
func allProjectsPrefix() []byte   { return makePrefix(nsProject) }

// projectDataPrefixes lists every prefix holding data owned by a project.
func projectDataPrefixes(projectID string) [][]byte {
	prefixes := [][]byte{
		makePrefix(nsNode, projectID),
		makePrefix(nsName, projectID),
		makePrefix(nsEdge, projectID),
		makePrefix(nsOut, projectID),
		makePrefix(nsIn, projectID),
		makePrefix(nsEdgeTyp, projectID),
	}
	for _, t := range AllNodeTypes {
		prefixes = append(prefixes, labelPrefix(projectID, t))
	}
	return prefixes
}

// nameIndexTerms returns the lookup terms a node is indexed under: its name
// and the simple name of its ID.
func nameIndexTerms(n *CodeNode) []string {
	terms := make([]string, 0, 2)
	if n.Name != "" {
		terms = append(terms, n.Name)
	}
	if simple := SimpleName(n.ID); simple != "" && simple != n.Name {
		terms = append(terms, simple)
	}
	return terms
}
