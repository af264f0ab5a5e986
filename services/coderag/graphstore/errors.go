// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphstore persists a multi-tenant graph of code entities and
// relationships on top of BadgerDB.
//
// # Project Isolation
//
// Every node and edge carries a project ID. Keys are partitioned by project,
// and each node is additionally indexed under a project-scoped label of the
// form Project_<projectId>_<Type>, so project-scoped queries never touch
// another tenant's data. Cross-project variants exist for global analyses and
// are named explicitly (FindNodesByTypeAcrossProjects and friends).
//
// # Identity
//
// Node IDs are unique within a project regardless of node type. Edge IDs are
// unique within the edge's project. Creating a node or edge whose ID already
// exists fails with ErrConflict; bulk ingestion treats that as an idempotent
// skip. A commit that collides with a concurrent transaction is retried a
// bounded number of times and then fails with ErrWriteConflict, which is
// never treated as a duplicate.
//
// # Thread Safety
//
// Store holds no mutable state of its own. All state lives in Badger and is
// accessed through one transaction per operation, so a Store is safe for
// concurrent use. Readers may observe a partially ingested graph.
package graphstore

import "errors"

// Sentinel errors for graph store operations.
var (
	// ErrNotFound is returned when a node, edge, class, package, or project
	// does not exist in the requested project.
	ErrNotFound = errors.New("not found")

	// ErrInvalidUpdate is returned when an update set is empty or contains
	// only immutable or unknown fields, or a field has the wrong value type.
	ErrInvalidUpdate = errors.New("invalid update")

	// ErrEndpointNotFound is returned by AddEdge when the source or target
	// node cannot be resolved, including after fallback resolution.
	ErrEndpointNotFound = errors.New("source or target node not found")

	// ErrConflict is returned when creating an entity whose ID already exists.
	ErrConflict = errors.New("already exists")

	// ErrWriteConflict is returned when a write keeps colliding with
	// concurrent transactions after the store's bounded retries. The write
	// did not happen and may be retried.
	ErrWriteConflict = errors.New("concurrent write conflict")

	// ErrConnectivity is returned when the backing store is unreachable.
	// The store never retries; retry policy belongs to the caller.
	ErrConnectivity = errors.New("backing store unavailable")

	// ErrNotCreated is returned when a write completes but the record
	// cannot be read back.
	ErrNotCreated = errors.New("node not created")

	// ErrInvalidNode is returned when a node fails validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge is returned when an edge fails validation.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrInvalidProject is returned when a project ID fails validation.
	ErrInvalidProject = errors.New("invalid project")

	// ErrInvalidRequest is returned when an ingest request fails validation.
	ErrInvalidRequest = errors.New("invalid ingest request")
)
