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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/coderag/pkg/validation"
)

// structValidate is the validator instance for graph entities.
// Initialized in init() with custom validators.
var structValidate *validator.Validate

func init() {
	structValidate = validator.New()
	structValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = structValidate.RegisterValidation("project_id", func(fl validator.FieldLevel) bool {
		return validation.ValidateProjectID(fl.Field().String()) == nil
	})
	_ = structValidate.RegisterValidation("entity_id", func(fl validator.FieldLevel) bool {
		return validation.ValidateEntityID(fl.Field().String()) == nil
	})
	_ = structValidate.RegisterValidation("entity_name", func(fl validator.FieldLevel) bool {
		return validation.ValidateEntityName(fl.Field().String()) == nil
	})
	_ = structValidate.RegisterValidation("node_type", func(fl validator.FieldLevel) bool {
		return NodeType(fl.Field().String()).Valid()
	})
	_ = structValidate.RegisterValidation("edge_type", func(fl validator.FieldLevel) bool {
		return EdgeType(fl.Field().String()).Valid()
	})
}

// ValidateNode checks a node's required fields and formats.
func ValidateNode(n *CodeNode) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if err := structValidate.Struct(n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidNode, describeValidation(err))
	}
	if n.EndLine > 0 && n.EndLine < n.StartLine {
		return fmt.Errorf("%w: end_line %d before start_line %d", ErrInvalidNode, n.EndLine, n.StartLine)
	}
	return nil
}

// ValidateEdge checks an edge's required fields and formats.
func ValidateEdge(e *CodeEdge) error {
	if e == nil {
		return fmt.Errorf("%w: nil edge", ErrInvalidEdge)
	}
	if err := structValidate.Struct(e); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEdge, describeValidation(err))
	}
	if !e.IsCrossProject() && e.Source == e.Target && !allowsSelfLoop(e.Type) {
		return fmt.Errorf("%w: %s edge %s is self-referential", ErrInvalidEdge, e.Type, e.ID)
	}
	return nil
}

// ValidateProject checks a project's ID.
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("%w: nil project", ErrInvalidProject)
	}
	if err := structValidate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProject, describeValidation(err))
	}
	return nil
}

// allowsSelfLoop reports whether an edge type may point from a node to itself.
// Recursion and self-reference are real relationships; inheritance and
// containment loops are not.
func allowsSelfLoop(t EdgeType) bool {
	return t == EdgeTypeCalls || t == EdgeTypeReferences
}

// describeValidation flattens validator errors into "field: tag" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
