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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
)

// CreateProject registers a project. Returns ErrConflict if it exists.
func (s *Store) CreateProject(ctx context.Context, project *Project) (*Project, error) {
	if err := ValidateProject(project); err != nil {
		return nil, err
	}
	p := *project
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Name == "" {
		p.Name = p.ID
	}

	err := s.update(ctx, "CreateProject", p.ID, func(txn *badger.Txn) error {
		found, err := exists(txn, projectKey(p.ID))
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: project %s", ErrConflict, p.ID)
		}
		return putProject(txn, &p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created", slog.String("project_id", p.ID))
	return &p, nil
}

// EnsureProject returns the project with id, registering it if needed.
func (s *Store) EnsureProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.GetProject(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p, err = s.CreateProject(ctx, &Project{ID: id})
	if errors.Is(err, ErrConflict) {
		return s.GetProject(ctx, id)
	}
	return p, err
}

// GetProject returns a registered project. Returns ErrNotFound if absent.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p *Project
	err := s.view(ctx, "GetProject", id, func(txn *badger.Txn) error {
		data, err := storage.Get(txn, projectKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		p, err = decodeProject(data)
		return err
	})
	return p, err
}

// UpdateProject changes a project's name and description.
func (s *Store) UpdateProject(ctx context.Context, id, name, description string) (*Project, error) {
	var p *Project
	err := s.update(ctx, "UpdateProject", id, func(txn *badger.Txn) error {
		data, err := storage.Get(txn, projectKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if p, err = decodeProject(data); err != nil {
			return err
		}
		if name != "" {
			p.Name = name
		}
		p.Description = description
		p.UpdatedAt = time.Now().UTC()
		return putProject(txn, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns every registered project ordered by ID.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	projects := []*Project{}
	err := s.view(ctx, "ListProjects", "*", func(txn *badger.Txn) error {
		return storage.ScanPrefix(txn, allProjectsPrefix(), func(_, value []byte) error {
			p, err := decodeProject(value)
			if err != nil {
				return err
			}
			projects = append(projects, p)
			return nil
		})
	})
	return projects, err
}

// ClearProject deletes every node and edge in a project and keeps its
// registration.
func (s *Store) ClearProject(ctx context.Context, id string) error {
	ctx, span := startOpSpan(ctx, "ClearProject", id)
	start := time.Now()

	err := ctx.Err()
	if err == nil {
		err = classify(s.db.DropPrefixes(projectDataPrefixes(id)...))
	}

	recordOpMetrics(ctx, "ClearProject", time.Since(start), err)
	endSpan(span, err)
	if err != nil {
		return err
	}
	s.logger.Info("project cleared", slog.String("project_id", id))
	return nil
}

// DeleteProject removes a project's data and registration. Returns false
// when there was neither.
//
// Index entries in other projects that point at this project's edges are
// left behind and skipped on read.
func (s *Store) DeleteProject(ctx context.Context, id string) (bool, error) {
	present := false
	err := s.view(ctx, "DeleteProject.Probe", id, func(txn *badger.Txn) error {
		found, err := exists(txn, projectKey(id))
		if err != nil || found {
			present = found
			return err
		}
		return storage.ScanKeys(txn, nodePrefix(id), func([]byte) error {
			present = true
			return storage.ErrStopScan
		})
	})
	if err != nil || !present {
		return false, err
	}

	if err := s.ClearProject(ctx, id); err != nil {
		return false, err
	}
	err = s.update(ctx, "DeleteProject", id, func(txn *badger.Txn) error {
		return txn.Delete(projectKey(id))
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("project deleted", slog.String("project_id", id))
	return true, nil
}

// ProjectStats counts a project's nodes and edges by type.
func (s *Store) ProjectStats(ctx context.Context, id string) (*ProjectStats, error) {
	stats := &ProjectStats{
		ProjectID:   id,
		NodesByType: make(map[NodeType]int),
		EdgesByType: make(map[EdgeType]int),
	}
	err := s.view(ctx, "ProjectStats", id, func(txn *badger.Txn) error {
		for _, t := range AllNodeTypes {
			err := storage.ScanKeys(txn, labelPrefix(id, t), func([]byte) error {
				stats.NodesByType[t]++
				stats.NodeCount++
				return nil
			})
			if err != nil {
				return err
			}
		}
		for _, t := range AllEdgeTypes {
			err := storage.ScanKeys(txn, edgeTypePrefix(id, t), func([]byte) error {
				stats.EdgesByType[t]++
				stats.EdgeCount++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func putProject(txn *badger.Txn, p *Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	return txn.Set(projectKey(p.ID), data)
}

func decodeProject(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return &p, nil
}
