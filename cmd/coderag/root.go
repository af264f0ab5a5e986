// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/coderag/pkg/logging"
	"github.com/AleutianAI/coderag/services/coderag/config"
	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	"github.com/AleutianAI/coderag/services/coderag/metrics"
	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "coderag",
		Short: "Code graph store and quality metrics",
		Long: `coderag stores code entities and their relationships per project and
computes Chidamber-Kemerer, package, and architectural metrics over them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default $CODERAG_CONFIG)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	flags.BoolVar(&opts.jsonOut, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newIngestCmd(opts),
		newProjectsCmd(opts),
		newMetricsCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// app holds the components a command runs against.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	db       *storage.DB
	store    *graphstore.Store
	ingestor *graphstore.Ingestor
	engine   *metrics.Engine
}

// openApp loads configuration and opens the store. The caller must Close it.
func openApp(opts *rootOptions, service string) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	log, err := cfg.Logging.Logger(service)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logger := log.Slog()

	storeCfg := cfg.Storage
	storeCfg.Logger = logger
	db, err := storage.Open(storeCfg)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store := graphstore.New(db,
		graphstore.WithLogger(logger),
		graphstore.WithMaxHierarchyDepth(cfg.Graph.MaxHierarchyDepth),
	)
	engine, err := metrics.NewEngine(store, cfg.Metrics, metrics.WithLogger(logger))
	if err != nil {
		_ = db.Close()
		_ = log.Close()
		return nil, err
	}

	logger.Debug("storage opened",
		slog.String("path", db.Path()),
		slog.Bool("in_memory", db.InMemory()),
	)
	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		ingestor: graphstore.NewIngestor(store, cfg.Ingest),
		engine:   engine,
	}, nil
}

func (a *app) logger() *slog.Logger {
	return a.log.Slog()
}

// Close closes the store, then the log file.
func (a *app) Close() error {
	err := a.db.Close()
	if cerr := a.log.Close(); err == nil {
		err = cerr
	}
	return err
}

// withApp opens the app, runs fn, and closes the app.
func withApp(opts *rootOptions, service string, fn func(a *app) error) (err error) {
	a, err := openApp(opts, service)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
