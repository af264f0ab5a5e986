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

import "strings"

// ProjectLabel composes the project-scoped label Project_<projectId>_<Type>.
//
// Node types contain no underscores, so the label splits unambiguously at
// its last underscore.
func ProjectLabel(projectID string, t NodeType) string {
	return "Project_" + projectID + "_" + t.labelName()
}

// ScopedID composes a globally unique "<projectID>:<entityID>" key.
func ScopedID(projectID, entityID string) string {
	return projectID + ":" + entityID
}

// SplitScopedID splits a scoped identifier on its first colon only, so
// entity IDs may themselves contain colons. ok is false when s has no colon.
func SplitScopedID(s string) (projectID, entityID string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", s, false
	}
	return s[:i], s[i+1:], true
}

// qualifierSeparators delimit namespace segments in entity IDs across the
// languages producers emit (Java/C# dots, paths, Ruby/Rust/C++ colons,
// JVM inner classes, PHP namespaces, member anchors).
const qualifierSeparators = "./#:$\\"

// SimpleName returns the part of a qualified ID after its last qualifier
// separator. An ID with no separator is returned unchanged.
func SimpleName(id string) string {
	i := strings.LastIndexAny(id, qualifierSeparators)
	if i < 0 {
		return id
	}
	return id[i+1:]
}

// Qualifier returns the part of a qualified name before its last '.'.
// It returns "" when there is none.
func Qualifier(qualifiedName string) string {
	i := strings.LastIndexByte(qualifiedName, '.')
	if i <= 0 {
		return ""
	}
	return qualifiedName[:i]
}
