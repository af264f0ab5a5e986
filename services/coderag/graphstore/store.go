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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
)

// DefaultMaxHierarchyDepth bounds FindInheritanceHierarchy walks.
const DefaultMaxHierarchyDepth = 32

const (
	// maxWriteAttempts bounds how often a write transaction is run when its
	// commit conflicts with a concurrent transaction.
	maxWriteAttempts = 8

	// writeRetryDelay is the base backoff between conflicting attempts.
	writeRetryDelay = 2 * time.Millisecond
)

// Store is the project-scoped graph store.
//
// Thread Safety: Safe for concurrent use. See the package documentation.
type Store struct {
	db                *storage.DB
	logger            *slog.Logger
	resolvers         []ResolutionStrategy
	maxHierarchyDepth int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxHierarchyDepth bounds how many extends edges
// FindInheritanceHierarchy follows. Non-positive values are ignored.
func WithMaxHierarchyDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.maxHierarchyDepth = depth
		}
	}
}

// WithResolutionStrategies replaces the edge endpoint resolution chain.
// Strategies are tried in order; the first that resolves wins.
func WithResolutionStrategies(strategies ...ResolutionStrategy) Option {
	return func(s *Store) {
		if len(strategies) > 0 {
			s.resolvers = strategies
		}
	}
}

// New creates a Store over an open database.
//
// Description:
//
//	The Store does not own db; closing it remains the caller's job. The
//	default resolution chain is exact ID match followed by simple-name
//	fallback for implements edges.
//
// Inputs:
//
//	db - Open Badger database. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Store - Ready to use.
func New(db *storage.DB, opts ...Option) *Store {
	s := &Store{
		db:                db,
		logger:            slog.Default(),
		resolvers:         DefaultResolutionStrategies(),
		maxHierarchyDepth: DefaultMaxHierarchyDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the backing store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(s.db.Ping())
}

// update runs fn in a read-write transaction with tracing and metrics.
//
// fn may run more than once: a commit that conflicts with a concurrent
// transaction is retried up to maxWriteAttempts times with a fresh
// transaction. fn must derive all of its writes from txn.
func (s *Store) update(ctx context.Context, op, projectID string, fn func(txn *badger.Txn) error) error {
	ctx, span := startOpSpan(ctx, op, projectID)
	start := time.Now()

	err := classify(s.withRetry(ctx, op, projectID, fn))

	recordOpMetrics(ctx, op, time.Since(start), err)
	endSpan(span, err)
	if err != nil && errors.Is(err, ErrConnectivity) {
		s.logger.Error("graph store write failed",
			slog.String("op", op),
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// withRetry runs fn in a write transaction, retrying on commit conflicts.
func (s *Store) withRetry(ctx context.Context, op, projectID string, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = s.db.WithTxn(ctx, fn)
		if !errors.Is(err, badger.ErrConflict) || attempt == maxWriteAttempts {
			return err
		}

		s.logger.Debug("retrying write after transaction conflict",
			slog.String("op", op),
			slog.String("project_id", projectID),
			slog.Int("attempt", attempt),
		)
		timer := time.NewTimer(time.Duration(attempt) * writeRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return err
}

// view runs fn in a read-only transaction with tracing and metrics.
func (s *Store) view(ctx context.Context, op, projectID string, fn func(txn *badger.Txn) error) error {
	ctx, span := startOpSpan(ctx, op, projectID)
	start := time.Now()

	err := classify(s.db.WithReadTxn(ctx, fn))

	recordOpMetrics(ctx, op, time.Since(start), err)
	endSpan(span, err)
	return err
}

// classify maps storage errors onto the package's sentinel errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %v", ErrWriteConflict, err)
	default:
		return err
	}
}

// getNode loads a node inside txn. Returns ErrNotFound if absent.
func getNode(txn *badger.Txn, projectID, id string) (*CodeNode, error) {
	data, err := storage.Get(txn, nodeKey(projectID, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: node %s in project %s", ErrNotFound, id, projectID)
	}
	if err != nil {
		return nil, err
	}
	return decodeNode(data)
}

// getEdge loads an edge inside txn. Returns ErrNotFound if absent.
func getEdge(txn *badger.Txn, projectID, id string) (*CodeEdge, error) {
	data, err := storage.Get(txn, edgeKey(projectID, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: edge %s in project %s", ErrNotFound, id, projectID)
	}
	if err != nil {
		return nil, err
	}
	return decodeEdge(data)
}

// exists reports whether key is present.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// nodesByIndex loads the nodes whose IDs are the last segment of each index
// key under prefix. Index entries whose node is gone are skipped.
func nodesByIndex(txn *badger.Txn, projectID string, prefix []byte) ([]*CodeNode, error) {
	var ids []string
	err := storage.ScanKeys(txn, prefix, func(key []byte) error {
		ids = append(ids, lastSegment(key))
		return nil
	})
	if err != nil {
		return nil, err
	}

	nodes := make([]*CodeNode, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		n, err := getNode(txn, projectID, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// scanNodes decodes every node record under prefix and keeps those matching
// keep. A nil keep matches all.
func scanNodes(txn *badger.Txn, prefix []byte, keep func(*CodeNode) bool) ([]*CodeNode, error) {
	nodes := []*CodeNode{}
	err := storage.ScanPrefix(txn, prefix, func(_, value []byte) error {
		n, err := decodeNode(value)
		if err != nil {
			return err
		}
		if keep == nil || keep(n) {
			nodes = append(nodes, n)
		}
		return nil
	})
	return nodes, err
}

// scanEdges decodes every edge record under prefix and keeps those matching
// keep. A nil keep matches all.
func scanEdges(txn *badger.Txn, prefix []byte, keep func(*CodeEdge) bool) ([]*CodeEdge, error) {
	edges := []*CodeEdge{}
	err := storage.ScanPrefix(txn, prefix, func(_, value []byte) error {
		e, err := decodeEdge(value)
		if err != nil {
			return err
		}
		if keep == nil || keep(e) {
			edges = append(edges, e)
		}
		return nil
	})
	return edges, err
}
