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
	"encoding/json"
	"fmt"
)

// attributesVersion is the envelope version written for attribute blobs.
const attributesVersion = 1

// attributeEnvelope is the persisted form of Attributes.
type attributeEnvelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// nodeRecord is the persisted form of a CodeNode.
type nodeRecord struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	Type          NodeType        `json:"type"`
	Label         string          `json:"label"`
	Name          string          `json:"name"`
	QualifiedName string          `json:"qualified_name"`
	Description   string          `json:"description,omitempty"`
	SourceFile    string          `json:"source_file"`
	StartLine     int             `json:"start_line"`
	EndLine       int             `json:"end_line"`
	Modifiers     []string        `json:"modifiers,omitempty"`
	Attributes    json.RawMessage `json:"attributes,omitempty"`
}

// edgeRecord is the persisted form of a CodeEdge.
type edgeRecord struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"project_id"`
	TargetProjectID string          `json:"target_project_id,omitempty"`
	Type            EdgeType        `json:"type"`
	Source          string          `json:"source"`
	Target          string          `json:"target"`
	Attributes      json.RawMessage `json:"attributes,omitempty"`
}

// encodeAttributes serialises attributes into a versioned envelope.
// Nil or empty attributes encode to nil.
func encodeAttributes(attrs Attributes) (json.RawMessage, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(map[string]any(attrs))
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return json.Marshal(attributeEnvelope{Version: attributesVersion, Data: data})
}

// decodeAttributes rehydrates an attribute envelope. Numbers come back as
// int64 when integral and float64 otherwise, never as strings.
func decodeAttributes(raw json.RawMessage) (Attributes, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var env attributeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode attribute envelope: %w", err)
	}
	if env.Version != attributesVersion {
		return nil, fmt.Errorf("unsupported attribute version %d", env.Version)
	}

	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	for k, v := range data {
		data[k] = normalizeNumbers(v)
	}
	return Attributes(data), nil
}

// normalizeNumbers converts json.Number values, recursively, to int64 or float64.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeNumbers(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = normalizeNumbers(inner)
		}
		return val
	default:
		return v
	}
}

func encodeNode(n *CodeNode) ([]byte, error) {
	attrs, err := encodeAttributes(n.Attributes)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeRecord{
		ID:            n.ID,
		ProjectID:     n.ProjectID,
		Type:          n.Type,
		Label:         n.Label(),
		Name:          n.Name,
		QualifiedName: n.QualifiedName,
		Description:   n.Description,
		SourceFile:    n.SourceFile,
		StartLine:     n.StartLine,
		EndLine:       n.EndLine,
		Modifiers:     n.Modifiers,
		Attributes:    attrs,
	})
}

func decodeNode(data []byte) (*CodeNode, error) {
	var rec nodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	attrs, err := decodeAttributes(rec.Attributes)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", rec.ID, err)
	}
	modifiers := rec.Modifiers
	if modifiers == nil {
		modifiers = []string{}
	}
	return &CodeNode{
		ID:            rec.ID,
		ProjectID:     rec.ProjectID,
		Type:          rec.Type,
		Name:          rec.Name,
		QualifiedName: rec.QualifiedName,
		Description:   rec.Description,
		SourceFile:    rec.SourceFile,
		StartLine:     rec.StartLine,
		EndLine:       rec.EndLine,
		Modifiers:     modifiers,
		Attributes:    attrs,
	}, nil
}

func encodeEdge(e *CodeEdge) ([]byte, error) {
	attrs, err := encodeAttributes(e.Attributes)
	if err != nil {
		return nil, err
	}
	targetProject := ""
	if e.IsCrossProject() {
		targetProject = e.TargetProjectID
	}
	return json.Marshal(edgeRecord{
		ID:              e.ID,
		ProjectID:       e.ProjectID,
		TargetProjectID: targetProject,
		Type:            e.Type,
		Source:          e.Source,
		Target:          e.Target,
		Attributes:      attrs,
	})
}

func decodeEdge(data []byte) (*CodeEdge, error) {
	var rec edgeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode edge: %w", err)
	}
	attrs, err := decodeAttributes(rec.Attributes)
	if err != nil {
		return nil, fmt.Errorf("edge %s: %w", rec.ID, err)
	}
	return &CodeEdge{
		ID:              rec.ID,
		ProjectID:       rec.ProjectID,
		TargetProjectID: rec.TargetProjectID,
		Type:            rec.Type,
		Source:          rec.Source,
		Target:          rec.Target,
		Attributes:      attrs,
	}, nil
}
