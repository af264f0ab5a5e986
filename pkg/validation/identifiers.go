// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that end up
// inside storage keys, index labels, or API paths.
//
// Project IDs are embedded in project-scoped labels of the form
// Project_<projectId>_<Type> and in composite storage keys, so they are
// restricted to a conservative character set. Entity IDs and names are
// free-form but must not contain the NUL byte, which separates storage key
// segments.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxProjectIDLength bounds project ID length.
const MaxProjectIDLength = 128

// projectIDPattern matches valid project IDs.
// Allows: letters, digits, dots, underscores, hyphens.
// Must start with a letter or digit.
var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]*$`)

// ValidateProjectID validates a project ID.
//
// Valid project IDs:
//   - 1-128 characters
//   - Letters, digits, '.', '_' and '-'
//   - First character is a letter or digit
//
// Example:
//
//	if err := validation.ValidateProjectID(id); err != nil {
//	    return nil, fmt.Errorf("invalid project: %w", err)
//	}
func ValidateProjectID(projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if len(projectID) > MaxProjectIDLength {
		return fmt.Errorf("project id too long: %d bytes (max %d)", len(projectID), MaxProjectIDLength)
	}
	if !projectIDPattern.MatchString(projectID) {
		return fmt.Errorf("invalid project id format: %q (letters, digits, '.', '_' or '-' only)", projectID)
	}
	return nil
}

// SanitizeProjectID trims surrounding whitespace and validates the result.
func SanitizeProjectID(projectID string) (string, error) {
	trimmed := strings.TrimSpace(projectID)
	if err := ValidateProjectID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// ValidateEntityID validates a node or edge ID.
//
// Entity IDs are usually qualified names ("com.example.Foo#bar(int)") and may
// hold almost anything, but they cannot be empty and cannot contain NUL.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if strings.IndexByte(id, 0) >= 0 {
		return fmt.Errorf("id %q contains a NUL byte", id)
	}
	return nil
}

// ValidateEntityName validates a node name. Names are indexed as a storage
// key segment, so the same NUL rule as entity IDs applies.
func ValidateEntityName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("name %q contains a NUL byte", name)
	}
	return nil
}
