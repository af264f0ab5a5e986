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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// relationshipNamespace seeds deterministic IDs for relationships that
// arrive without one.
var relationshipNamespace = uuid.MustParse("3d1f6c52-8a0e-4b7d-9c35-6e2a1f0b7d48")

// Default ingestion batch sizes.
const (
	DefaultEntityBatchSize       = 100
	DefaultRelationshipBatchSize = 100
	DefaultMaxParallel           = 16
)

// ParseError is a non-fatal problem reported by a source parser.
type ParseError struct {
	File     string `json:"file"`
	Message  string `json:"message"`
	Severity string `json:"severity" validate:"omitempty,oneof=warning error"`
}

// IngestRequest is one batch of parser output for a project. Entities and
// relationships may leave ProjectID empty; the request's ProjectID is
// applied to them.
type IngestRequest struct {
	ProjectID     string       `json:"project_id" validate:"required,project_id"`
	Entities      []*CodeNode  `json:"entities"`
	Relationships []*CodeEdge  `json:"relationships"`
	ParseErrors   []ParseError `json:"parse_errors,omitempty" validate:"dive"`
}

// IngestFailure records one entity or relationship that could not be written.
type IngestFailure struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

// IngestResult summarises an ingestion run.
type IngestResult struct {
	ProjectID            string          `json:"project_id"`
	EntitiesCreated      int             `json:"entities_created"`
	EntitiesSkipped      int             `json:"entities_skipped"`
	RelationshipsCreated int             `json:"relationships_created"`
	RelationshipsSkipped int             `json:"relationships_skipped"`
	PackagesCreated      int             `json:"packages_created"`
	Failures             []IngestFailure `json:"failures"`
	ParseErrors          []ParseError    `json:"parse_errors"`
	DurationMs           int64           `json:"duration_ms"`
}

// IngestOptions configures an Ingestor.
type IngestOptions struct {
	EntityBatchSize       int  `yaml:"entity_batch_size"`
	RelationshipBatchSize int  `yaml:"relationship_batch_size"`
	MaxParallel           int  `yaml:"max_parallel"`
	AutoCreatePackages    bool `yaml:"auto_create_packages"`
}

// DefaultIngestOptions returns batches of 100 with package creation on.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		EntityBatchSize:       DefaultEntityBatchSize,
		RelationshipBatchSize: DefaultRelationshipBatchSize,
		MaxParallel:           DefaultMaxParallel,
		AutoCreatePackages:    true,
	}
}

// Ingestor writes parser output into a Store.
//
// Thread Safety: Safe for concurrent use. Each Ingest call owns its session
// state.
type Ingestor struct {
	store  *Store
	opts   IngestOptions
	logger *slog.Logger
}

// NewIngestor creates an Ingestor. Non-positive sizes fall back to defaults.
func NewIngestor(store *Store, opts IngestOptions) *Ingestor {
	defaults := DefaultIngestOptions()
	if opts.EntityBatchSize <= 0 {
		opts.EntityBatchSize = defaults.EntityBatchSize
	}
	if opts.RelationshipBatchSize <= 0 {
		opts.RelationshipBatchSize = defaults.RelationshipBatchSize
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaults.MaxParallel
	}
	return &Ingestor{store: store, opts: opts, logger: store.logger}
}

// ingestSession is the state owned by a single Ingest call.
type ingestSession struct {
	projectID string

	mu       sync.Mutex
	packages map[string]bool
	result   *IngestResult
}

// claimPackage reports whether name has not been claimed yet in this
// session, and claims it.
func (s *ingestSession) claimPackage(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.packages[name] {
		return false
	}
	s.packages[name] = true
	return true
}

func (s *ingestSession) record(fn func(r *IngestResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.result)
}

func (s *ingestSession) fail(kind, id string, err error) {
	s.record(func(r *IngestResult) {
		r.Failures = append(r.Failures, IngestFailure{Kind: kind, ID: id, Error: err.Error()})
	})
}

// Ingest writes a request's entities, then its relationships.
//
// Description:
//
//	Entities are written in batches of EntityBatchSize, relationships in
//	batches of RelationshipBatchSize. Writes inside a batch run in
//	parallel, bounded by MaxParallel, and the batch is awaited before the
//	next starts. Duplicate IDs count as skipped. Any other per-item failure
//	is collected in the result and does not stop the run.
//
//	With AutoCreatePackages, each class-like entity's package (attribute
//	"package", else its qualified-name prefix) gets a package node and a
//	contains edge, once per session.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	req - Parser output. ProjectID is required.
//
// Outputs:
//
//	*IngestResult - Counts and failures. Returned even when err is non-nil.
//	error - Validation errors, ErrConnectivity, or context cancellation.
//	Per-item failures are not errors.
func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()
	ctx, span := startOpSpan(ctx, "Ingest", req.ProjectID)

	session := &ingestSession{
		projectID: req.ProjectID,
		packages:  make(map[string]bool),
		result: &IngestResult{
			ProjectID:   req.ProjectID,
			Failures:    []IngestFailure{},
			ParseErrors: append([]ParseError{}, req.ParseErrors...),
		},
	}

	err := i.run(ctx, session, req)

	result := session.result
	sortFailures(result.Failures)
	result.DurationMs = time.Since(start).Milliseconds()
	recordIngestMetrics(ctx, req.ProjectID, result)
	endSpan(span, err)

	i.logger.Info("ingest finished",
		slog.String("project_id", req.ProjectID),
		slog.Int("entities_created", result.EntitiesCreated),
		slog.Int("entities_skipped", result.EntitiesSkipped),
		slog.Int("relationships_created", result.RelationshipsCreated),
		slog.Int("relationships_skipped", result.RelationshipsSkipped),
		slog.Int("packages_created", result.PackagesCreated),
		slog.Int("failures", len(result.Failures)),
		slog.Int("parse_errors", len(result.ParseErrors)),
		slog.Int64("duration_ms", result.DurationMs),
	)
	return result, err
}

func (i *Ingestor) run(ctx context.Context, session *ingestSession, req IngestRequest) error {
	if err := structValidate.Struct(&req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, describeValidation(err))
	}
	if _, err := i.store.EnsureProject(ctx, req.ProjectID); err != nil {
		return fmt.Errorf("ensure project %s: %w", req.ProjectID, err)
	}

	entities := make([]*CodeNode, 0, len(req.Entities))
	for _, e := range req.Entities {
		if e == nil {
			continue
		}
		n := cloneNode(e)
		n.ProjectID = req.ProjectID
		entities = append(entities, n)
	}

	relationships := make([]*CodeEdge, 0, len(req.Relationships))
	for _, r := range req.Relationships {
		if r == nil {
			continue
		}
		e := cloneEdge(r)
		e.ProjectID = req.ProjectID
		if e.TargetProjectID == req.ProjectID {
			e.TargetProjectID = ""
		}
		if e.ID == "" {
			e.ID = RelationshipID(e)
		}
		relationships = append(relationships, e)
	}

	if err := inBatches(ctx, entities, i.opts.EntityBatchSize, i.opts.MaxParallel, func(ctx context.Context, n *CodeNode) error {
		return i.writeEntity(ctx, session, n)
	}); err != nil {
		return err
	}

	if i.opts.AutoCreatePackages {
		pkgs, edges := i.packageEntities(session, entities)
		if err := inBatches(ctx, pkgs, i.opts.EntityBatchSize, i.opts.MaxParallel, func(ctx context.Context, n *CodeNode) error {
			return i.writePackage(ctx, session, n)
		}); err != nil {
			return err
		}
		relationships = append(relationships, edges...)
	}

	return inBatches(ctx, relationships, i.opts.RelationshipBatchSize, i.opts.MaxParallel, func(ctx context.Context, e *CodeEdge) error {
		return i.writeRelationship(ctx, session, e)
	})
}

func (i *Ingestor) writeEntity(ctx context.Context, session *ingestSession, n *CodeNode) error {
	_, err := i.store.AddNode(ctx, n)
	switch {
	case err == nil:
		session.record(func(r *IngestResult) { r.EntitiesCreated++ })
	case errors.Is(err, ErrConflict):
		session.record(func(r *IngestResult) { r.EntitiesSkipped++ })
	case errors.Is(err, ErrConnectivity), ctx.Err() != nil:
		return err
	default:
		session.fail("entity", n.ID, err)
	}
	return nil
}

func (i *Ingestor) writePackage(ctx context.Context, session *ingestSession, n *CodeNode) error {
	_, err := i.store.AddNode(ctx, n)
	switch {
	case err == nil:
		session.record(func(r *IngestResult) { r.PackagesCreated++ })
	case errors.Is(err, ErrConflict):
	case errors.Is(err, ErrConnectivity), ctx.Err() != nil:
		return err
	default:
		session.fail("package", n.ID, err)
	}
	return nil
}

func (i *Ingestor) writeRelationship(ctx context.Context, session *ingestSession, e *CodeEdge) error {
	_, err := i.store.AddEdge(ctx, e)
	switch {
	case err == nil:
		session.record(func(r *IngestResult) { r.RelationshipsCreated++ })
	case errors.Is(err, ErrConflict):
		session.record(func(r *IngestResult) { r.RelationshipsSkipped++ })
	case errors.Is(err, ErrConnectivity), ctx.Err() != nil:
		return err
	default:
		session.fail("relationship", e.ID, err)
	}
	return nil
}

// packageEntities returns the package nodes and contains edges for the
// packages first seen in this session.
func (i *Ingestor) packageEntities(session *ingestSession, entities []*CodeNode) ([]*CodeNode, []*CodeEdge) {
	var nodes []*CodeNode
	var edges []*CodeEdge
	seen := make(map[string]bool, len(entities))
	for _, n := range entities {
		if !n.Type.IsClassLike() || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		pkg := PackageOf(n)
		if pkg == "" || pkg == n.ID {
			continue
		}
		if session.claimPackage(pkg) {
			nodes = append(nodes, &CodeNode{
				ID:            pkg,
				ProjectID:     session.projectID,
				Type:          NodeTypePackage,
				Name:          pkg,
				QualifiedName: pkg,
				Modifiers:     []string{},
			})
		}
		edge := &CodeEdge{
			ProjectID: session.projectID,
			Type:      EdgeTypeContains,
			Source:    pkg,
			Target:    n.ID,
		}
		edge.ID = RelationshipID(edge)
		edges = append(edges, edge)
	}
	return nodes, edges
}

// PackageOf returns the package a node declares: its "package" attribute,
// else the qualifier of its qualified name.
func PackageOf(n *CodeNode) string {
	if pkg, ok := n.Attributes["package"].(string); ok && strings.TrimSpace(pkg) != "" {
		return strings.TrimSpace(pkg)
	}
	return Qualifier(n.QualifiedName)
}

// RelationshipID derives a stable ID from an edge's project, endpoints,
// and type.
func RelationshipID(e *CodeEdge) string {
	name := strings.Join([]string{e.ProjectID, e.Source, string(e.Type), e.TargetProject(), e.Target}, "|")
	return uuid.NewSHA1(relationshipNamespace, []byte(name)).String()
}

// inBatches calls write for every item, batchSize at a time. Items within
// a batch run concurrently, at most parallel at once, and each batch
// completes before the next starts. The first error returned by write
// stops the run.
func inBatches[T any](ctx context.Context, items []T, batchSize, parallel int, write func(context.Context, T) error) error {
	for start := 0; start < len(items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(items))

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		for _, item := range items[start:end] {
			g.Go(func() error {
				return write(gCtx, item)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func sortFailures(failures []IngestFailure) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Kind != failures[j].Kind {
			return failures[i].Kind < failures[j].Kind
		}
		return failures[i].ID < failures[j].ID
	})
}
