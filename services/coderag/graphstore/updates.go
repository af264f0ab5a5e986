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
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/AleutianAI/coderag/pkg/validation"
)

// Updates is a partial update keyed by JSON field name.
type Updates map[string]any

// nodeSetters holds the mutable node fields. id, project_id, and type are
// immutable; keys not listed here are ignored.
var nodeSetters = map[string]func(n *CodeNode, v any) error{
	"name": func(n *CodeNode, v any) error {
		s, err := asString(v)
		if err != nil {
			return err
		}
		if err := validation.ValidateEntityName(s); err != nil {
			return err
		}
		n.Name = s
		return nil
	},
	"qualified_name": func(n *CodeNode, v any) error {
		s, err := asString(v)
		n.QualifiedName = s
		return err
	},
	"description": func(n *CodeNode, v any) error {
		s, err := asString(v)
		n.Description = s
		return err
	},
	"source_file": func(n *CodeNode, v any) error {
		s, err := asString(v)
		n.SourceFile = s
		return err
	},
	"start_line": func(n *CodeNode, v any) error {
		i, err := asLine(v)
		n.StartLine = i
		return err
	},
	"end_line": func(n *CodeNode, v any) error {
		i, err := asLine(v)
		n.EndLine = i
		return err
	},
	"modifiers": func(n *CodeNode, v any) error {
		m, err := asStringSlice(v)
		n.Modifiers = m
		return err
	},
	"attributes": func(n *CodeNode, v any) error {
		a, err := asAttributes(v)
		n.Attributes = a
		return err
	},
}

// edgeSetters holds the mutable edge fields. Endpoints and IDs are immutable.
var edgeSetters = map[string]func(e *CodeEdge, v any) error{
	"type": func(e *CodeEdge, v any) error {
		s, err := asString(v)
		if err != nil {
			return err
		}
		t, err := ParseEdgeType(s)
		if err != nil {
			return err
		}
		e.Type = t
		return nil
	},
	"attributes": func(e *CodeEdge, v any) error {
		a, err := asAttributes(v)
		e.Attributes = a
		return err
	},
}

// mutableKeys returns the update keys that have a setter, sorted.
// Fails with ErrInvalidUpdate when there are none.
func mutableKeys[T any](updates Updates, setters map[string]func(*T, any) error) ([]string, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: empty update", ErrInvalidUpdate)
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		if _, ok := setters[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no mutable fields in update", ErrInvalidUpdate)
	}
	sort.Strings(keys)
	return keys, nil
}

// applyUpdates applies the named keys to target.
func applyUpdates[T any](target *T, updates Updates, keys []string, setters map[string]func(*T, any) error) error {
	for _, k := range keys {
		if err := setters[k](target, updates[k]); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrInvalidUpdate, k, err)
		}
	}
	return nil
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func asLine(v any) (int, error) {
	var i int64
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		i = int64(n)
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %s", n)
		}
		i = parsed
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
	if i < 0 {
		return 0, fmt.Errorf("line cannot be negative")
	}
	return int(i), nil
}

func asStringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, s...), nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", v)
	}
}

func asAttributes(v any) (Attributes, error) {
	switch a := v.(type) {
	case nil:
		return nil, nil
	case Attributes:
		return a, nil
	case map[string]any:
		return Attributes(a), nil
	default:
		return nil, fmt.Errorf("expected object, got %T", v)
	}
}
