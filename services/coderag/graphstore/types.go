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
	"strings"
	"time"
)

// NodeType identifies the kind of code entity a node represents.
type NodeType string

const (
	NodeTypeClass     NodeType = "class"
	NodeTypeInterface NodeType = "interface"
	NodeTypeEnum      NodeType = "enum"
	NodeTypeException NodeType = "exception"
	NodeTypeFunction  NodeType = "function"
	NodeTypeMethod    NodeType = "method"
	NodeTypeField     NodeType = "field"
	NodeTypePackage   NodeType = "package"
	NodeTypeModule    NodeType = "module"
)

// AllNodeTypes lists every node type in declaration order.
var AllNodeTypes = []NodeType{
	NodeTypeClass,
	NodeTypeInterface,
	NodeTypeEnum,
	NodeTypeException,
	NodeTypeFunction,
	NodeTypeMethod,
	NodeTypeField,
	NodeTypePackage,
	NodeTypeModule,
}

// ParseNodeType converts a string to a NodeType, case-insensitively.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown node type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range AllNodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsClassLike reports whether nodes of this type own methods and fields
// and take part in class-level metrics.
func (t NodeType) IsClassLike() bool {
	switch t {
	case NodeTypeClass, NodeTypeInterface, NodeTypeEnum, NodeTypeException:
		return true
	default:
		return false
	}
}

// labelName is the capitalised form used inside project labels.
func (t NodeType) labelName() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// EdgeType identifies the kind of relationship an edge represents.
type EdgeType string

const (
	EdgeTypeCalls      EdgeType = "calls"
	EdgeTypeImplements EdgeType = "implements"
	EdgeTypeExtends    EdgeType = "extends"
	EdgeTypeContains   EdgeType = "contains"
	EdgeTypeReferences EdgeType = "references"
	EdgeTypeThrows     EdgeType = "throws"
	EdgeTypeBelongsTo  EdgeType = "belongs_to"
)

// AllEdgeTypes lists every edge type in declaration order.
var AllEdgeTypes = []EdgeType{
	EdgeTypeCalls,
	EdgeTypeImplements,
	EdgeTypeExtends,
	EdgeTypeContains,
	EdgeTypeReferences,
	EdgeTypeThrows,
	EdgeTypeBelongsTo,
}

// ParseEdgeType converts a string to an EdgeType, case-insensitively.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown edge type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known edge type.
func (t EdgeType) Valid() bool {
	for _, known := range AllEdgeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Attributes holds type-specific entity data such as extends, implements,
// parameters, return_type, and annotations. The store does not validate
// its contents.
type Attributes map[string]any

// CodeNode is a code entity scoped to a project.
type CodeNode struct {
	ID            string     `json:"id" validate:"required,entity_id"`
	ProjectID     string     `json:"project_id" validate:"required,project_id"`
	Type          NodeType   `json:"type" validate:"required,node_type"`
	Name          string     `json:"name" validate:"required,entity_name"`
	QualifiedName string     `json:"qualified_name"`
	Description   string     `json:"description,omitempty"`
	SourceFile    string     `json:"source_file"`
	StartLine     int        `json:"start_line" validate:"gte=0"`
	EndLine       int        `json:"end_line" validate:"gte=0"`
	Modifiers     []string   `json:"modifiers"`
	Attributes    Attributes `json:"attributes,omitempty"`
}

// Label returns the project-scoped label for the node.
func (n *CodeNode) Label() string {
	return ProjectLabel(n.ProjectID, n.Type)
}

// ScopedID returns the node's globally unique project:id key.
func (n *CodeNode) ScopedID() string {
	return ScopedID(n.ProjectID, n.ID)
}

// HasModifier reports whether the node carries the modifier, case-insensitively.
func (n *CodeNode) HasModifier(modifier string) bool {
	for _, m := range n.Modifiers {
		if strings.EqualFold(m, modifier) {
			return true
		}
	}
	return false
}

// CodeEdge is a directed relationship between two nodes.
type CodeEdge struct {
	ID        string   `json:"id" validate:"required,entity_id"`
	ProjectID string   `json:"project_id" validate:"required,project_id"`
	Type      EdgeType `json:"type" validate:"required,edge_type"`
	Source    string   `json:"source" validate:"required,entity_id"`
	Target    string   `json:"target" validate:"required,entity_id"`

	// TargetProjectID names the project the target lives in when it differs
	// from ProjectID. Empty means the same project.
	TargetProjectID string `json:"target_project_id,omitempty" validate:"omitempty,project_id"`

	Attributes Attributes `json:"attributes,omitempty"`
}

// TargetProject returns the project the edge's target node belongs to.
func (e *CodeEdge) TargetProject() string {
	if e.TargetProjectID == "" {
		return e.ProjectID
	}
	return e.TargetProjectID
}

// IsCrossProject reports whether source and target live in different projects.
func (e *CodeEdge) IsCrossProject() bool {
	return e.TargetProject() != e.ProjectID
}

// Project is a registered tenant of the graph store.
type Project struct {
	ID          string    `json:"id" validate:"required,project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectStats counts a project's nodes and edges by type.
type ProjectStats struct {
	ProjectID   string           `json:"project_id"`
	NodeCount   int              `json:"node_count"`
	EdgeCount   int              `json:"edge_count"`
	NodesByType map[NodeType]int `json:"nodes_by_type"`
	EdgesByType map[EdgeType]int `json:"edges_by_type"`
}

// CrossProjectDependency is an edge whose endpoints live in different projects.
type CrossProjectDependency struct {
	Edge      *CodeEdge `json:"edge"`
	Source    *CodeNode `json:"source"`
	Target    *CodeNode `json:"target"`
	SourceKey string    `json:"source_key"`
	TargetKey string    `json:"target_key"`
}
