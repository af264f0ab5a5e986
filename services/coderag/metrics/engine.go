// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/coderag/services/coderag/graphstore"
)

// Defaults for Config.
const (
	DefaultWorkers   = 8
	DefaultCacheSize = 4096
)

// Config configures an Engine.
type Config struct {
	Thresholds Thresholds `yaml:"thresholds"`

	// LCOMStrategy names the cohesion strategy: "pairwise" or
	// "henderson-sellers".
	LCOMStrategy string `yaml:"lcom_strategy"`

	// Workers bounds concurrent per-class computations in project-wide calls.
	Workers int `yaml:"workers"`

	// CacheSize is the capacity of each per-call lookup cache.
	CacheSize int `yaml:"cache_size"`
}

// DefaultConfig returns the default thresholds with pairwise LCOM.
func DefaultConfig() Config {
	return Config{
		Thresholds:   DefaultThresholds(),
		LCOMStrategy: LCOMPairwise,
		Workers:      DefaultWorkers,
		CacheSize:    DefaultCacheSize,
	}
}

// Engine computes metrics over a GraphReader.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	reader GraphReader
	cfg    Config
	lcom   LCOMStrategy
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLCOMStrategy overrides the strategy named in Config.
func WithLCOMStrategy(s LCOMStrategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.lcom = s
		}
	}
}

// NewEngine creates an Engine.
//
// Description:
//
//	Zero-valued numeric settings fall back to their defaults. A zero
//	Thresholds value is replaced by DefaultThresholds.
//
// Outputs:
//
//	*Engine - Ready to use.
//	error - ErrUnknownLCOMStrategy for an unrecognised strategy name.
func NewEngine(reader GraphReader, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	lcom, err := ParseLCOMStrategy(cfg.LCOMStrategy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		reader: reader,
		cfg:    cfg,
		lcom:   lcom,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Thresholds returns the thresholds the engine assesses against.
func (e *Engine) Thresholds() Thresholds {
	return e.cfg.Thresholds
}

// CalculateCKMetrics computes the CK metrics of one class.
//
// Description:
//
//	classID resolves by node ID first, then by name. The node must be
//	class-like.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	projectID - Project the class lives in.
//	classID - Class ID or name.
//
// Outputs:
//
//	*CKMetrics - The computed metrics.
//	error - graphstore.ErrNotFound when the class does not exist,
//	ErrInvalidInput when the node is not a class.
func (e *Engine) CalculateCKMetrics(ctx context.Context, projectID, classID string) (*CKMetrics, error) {
	ctx, span := startComputeSpan(ctx, "CalculateCKMetrics", projectID)
	start := time.Now()

	m, err := e.calculateCK(ctx, projectID, classID)

	recordComputeMetrics(ctx, "ck", time.Since(start), err)
	endSpan(span, err)
	return m, err
}

func (e *Engine) calculateCK(ctx context.Context, projectID, classID string) (*CKMetrics, error) {
	view, err := e.newView(projectID)
	if err != nil {
		return nil, err
	}
	class, err := e.resolveClass(ctx, view, classID)
	if err != nil {
		return nil, err
	}
	facts, err := e.classFacts(ctx, view, class)
	if err != nil {
		return nil, err
	}
	return &facts.metrics, nil
}

// AssessClass computes a class's CK metrics and applies the thresholds.
func (e *Engine) AssessClass(ctx context.Context, projectID, classID string) (*ClassAssessment, error) {
	m, err := e.CalculateCKMetrics(ctx, projectID, classID)
	if err != nil {
		return nil, err
	}
	a := AssessClass(*m, e.cfg.Thresholds)
	return &a, nil
}

// facts is everything computed for one class in a single pass.
type facts struct {
	metrics  CKMetrics
	efferent []string
}

// classFacts computes CK metrics and efferent dependencies for class.
func (e *Engine) classFacts(ctx context.Context, view *graphView, class *graphstore.CodeNode) (*facts, error) {
	m := CKMetrics{ClassID: class.ID, ClassName: class.Name}

	methods, err := view.contained(ctx, class.ID, graphstore.NodeTypeMethod)
	if err != nil {
		return nil, err
	}
	m.WMC = len(methods)

	ancestors, err := e.reader.FindInheritanceHierarchy(ctx, view.projectID, class.ID)
	if err != nil {
		return nil, fmt.Errorf("inheritance of %s: %w", class.ID, err)
	}
	m.DIT = len(ancestors)

	if m.NOC, err = children(ctx, view, class.ID); err != nil {
		return nil, err
	}

	efferent, afferent, err := view.dependencies(ctx, class.ID)
	if err != nil {
		return nil, err
	}
	coupled := make(map[string]bool, len(efferent)+len(afferent))
	for id := range efferent {
		coupled[id] = true
	}
	for id := range afferent {
		coupled[id] = true
	}
	m.CBO = len(coupled)

	if m.RFC, err = responseSet(ctx, view, methods); err != nil {
		return nil, err
	}

	cohesion, err := cohesionOf(ctx, view, class.ID, methods)
	if err != nil {
		return nil, err
	}
	m.LCOM = e.lcom.Compute(cohesion)

	return &facts{metrics: m, efferent: sortedKeys(efferent)}, nil
}

// children counts distinct nodes extending classID.
func children(ctx context.Context, view *graphView, classID string) (int, error) {
	in, err := view.incoming(ctx, classID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool)
	for _, e := range in {
		if e.Type == graphstore.EdgeTypeExtends && e.Source != classID {
			seen[e.Source] = true
		}
	}
	return len(seen), nil
}

// responseSet returns |methods ∪ methods called by methods|.
func responseSet(ctx context.Context, view *graphView, methods []string) (int, error) {
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[m] = true
	}
	for _, m := range methods {
		out, err := view.outgoing(ctx, m)
		if err != nil {
			return 0, err
		}
		for _, e := range out {
			if e.Type != graphstore.EdgeTypeCalls || set[e.Target] {
				continue
			}
			n, err := view.node(ctx, e.Target)
			if err != nil {
				return 0, err
			}
			if n != nil && (n.Type == graphstore.NodeTypeMethod || n.Type == graphstore.NodeTypeFunction) {
				set[n.ID] = true
			}
		}
	}
	return len(set), nil
}

// cohesionOf collects the class's fields and which methods reference them.
func cohesionOf(ctx context.Context, view *graphView, classID string, methods []string) (Cohesion, error) {
	fields, err := view.contained(ctx, classID, graphstore.NodeTypeField)
	if err != nil {
		return Cohesion{}, err
	}
	isField := make(map[string]bool, len(fields))
	for _, f := range fields {
		isField[f] = true
	}

	accesses := make(map[string]map[string]bool, len(methods))
	for _, m := range methods {
		used := make(map[string]bool)
		out, err := view.outgoing(ctx, m)
		if err != nil {
			return Cohesion{}, err
		}
		for _, e := range out {
			if e.Type == graphstore.EdgeTypeReferences && isField[e.Target] {
				used[e.Target] = true
			}
		}
		accesses[m] = used
	}
	return Cohesion{Methods: methods, Fields: fields, Accesses: accesses}, nil
}

// resolveClass finds a class-like node by ID, then by name.
func (e *Engine) resolveClass(ctx context.Context, view *graphView, ref string) (*graphstore.CodeNode, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: class id is required", ErrInvalidInput)
	}
	n, err := view.node(ctx, ref)
	if err != nil {
		return nil, err
	}
	if n != nil {
		if !n.Type.IsClassLike() {
			return nil, fmt.Errorf("%w: %s is a %s, not a class", ErrInvalidInput, ref, n.Type)
		}
		return n, nil
	}

	named, err := e.reader.FindNodesByName(ctx, view.projectID, ref)
	if err != nil {
		return nil, err
	}
	for _, c := range named {
		if c.Type.IsClassLike() {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: class %s in project %s", graphstore.ErrNotFound, ref, view.projectID)
}

func (e *Engine) newView(projectID string) (*graphView, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	return newGraphView(e.reader, projectID, e.cfg.CacheSize)
}
