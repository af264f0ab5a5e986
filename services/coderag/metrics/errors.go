// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics derives object-oriented design metrics from the code graph.
//
// The Engine computes Chidamber and Kemerer class metrics (WMC, DIT, NOC,
// CBO, RFC, LCOM), Robert Martin's package metrics (Ca, Ce, instability,
// abstractness, distance from the main sequence), architectural issues
// (dependency cycles, god classes, excessive coupling), and a 0-100 project
// quality score.
//
// All computation is read-only traversal through a GraphReader. Each call
// builds its own memoised view of the graph and discards it on return, so an
// Engine carries no state between calls and is safe for concurrent use. A
// metric is either fully computed or the call fails.
package metrics

import "errors"

// Sentinel errors for metric computation. Not-found conditions reuse
// graphstore.ErrNotFound so callers test a single sentinel.
var (
	// ErrInvalidInput is returned for empty identifiers or a node that is
	// not a class.
	ErrInvalidInput = errors.New("invalid metrics input")

	// ErrUnknownLCOMStrategy is returned when configuring an LCOM strategy
	// that does not exist.
	ErrUnknownLCOMStrategy = errors.New("unknown LCOM strategy")
)
