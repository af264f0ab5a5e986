// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads coderag's configuration.
//
// Sources, later ones winning:
//
//  1. DefaultConfig
//  2. the YAML file given to Load (or named by CODERAG_CONFIG)
//  3. CODERAG_* environment variables, including any set by a .env file
//     in the working directory
//
// Load validates the result before returning it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/coderag/pkg/logging"
	"github.com/AleutianAI/coderag/services/coderag/graphstore"
	"github.com/AleutianAI/coderag/services/coderag/metrics"
	storage "github.com/AleutianAI/coderag/services/coderag/storage/badger"
	"github.com/AleutianAI/coderag/services/coderag/telemetry"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CODERAG_"

// Config is the complete coderag configuration.
type Config struct {
	Storage   storage.Config           `yaml:"storage"`
	Graph     GraphConfig              `yaml:"graph"`
	Ingest    graphstore.IngestOptions `yaml:"ingest"`
	Metrics   metrics.Config           `yaml:"metrics"`
	Server    ServerConfig             `yaml:"server"`
	Logging   LoggingConfig            `yaml:"logging"`
	Telemetry telemetry.Config         `yaml:"telemetry"`
}

// GraphConfig tunes graph store queries.
type GraphConfig struct {
	// MaxHierarchyDepth bounds inheritance walks.
	MaxHierarchyDepth int `yaml:"max_hierarchy_depth"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit is the sustained request rate per client IP. Zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// MaxBodyBytes caps request bodies, ingest payloads included.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// LoggingConfig mirrors logging.Config with a textual level.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Logger builds a logger for service from the logging section.
func (c LoggingConfig) Logger(service string) (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		JSON:    c.JSON,
		LogDir:  c.Dir,
		Service: service,
	}), nil
}

// DefaultConfig returns defaults with data under ~/.coderag/data.
func DefaultConfig() Config {
	return Config{
		Storage:   storage.DefaultConfig(defaultDataDir()),
		Graph:     GraphConfig{MaxHierarchyDepth: graphstore.DefaultMaxHierarchyDepth},
		Ingest:    graphstore.DefaultIngestOptions(),
		Metrics:   metrics.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
			MaxBodyBytes:    64 << 20,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".coderag", "data")
	}
	return filepath.Join(home, ".coderag", "data")
}

// Load builds the configuration from defaults, the YAML file at path,
// and the environment.
//
// Description:
//
//	When path is empty, CODERAG_CONFIG names the file. When neither is
//	set, only defaults and the environment apply. A named file that does
//	not exist is an error. A .env file in the working directory is loaded
//	first and never overrides variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault writes DefaultConfig as YAML to path, creating parent
// directories. An existing file is left untouched and reported as an error.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnv overrides cfg from CODERAG_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("DATA_DIR", &cfg.Storage.Path)
	boolean("IN_MEMORY", &cfg.Storage.InMemory)
	str("ADDR", &cfg.Server.Addr)
	str("LOG_LEVEL", &cfg.Logging.Level)
	boolean("LOG_JSON", &cfg.Logging.JSON)
	str("LOG_DIR", &cfg.Logging.Dir)
	str("LCOM_STRATEGY", &cfg.Metrics.LCOMStrategy)
	integer("METRICS_WORKERS", &cfg.Metrics.Workers)
	integer("INGEST_BATCH_SIZE", &cfg.Ingest.EntityBatchSize)
	integer("INGEST_BATCH_SIZE", &cfg.Ingest.RelationshipBatchSize)
	integer("INGEST_PARALLEL", &cfg.Ingest.MaxParallel)
	str("TRACE_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("METRIC_EXPORTER", &cfg.Telemetry.MetricExporter)
	str("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	str("ENV", &cfg.Telemetry.Environment)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once, wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		problems = append(problems, "storage.path is required unless storage.in_memory is set")
	}
	if c.Graph.MaxHierarchyDepth <= 0 {
		problems = append(problems, "graph.max_hierarchy_depth must be positive")
	}
	if c.Ingest.EntityBatchSize <= 0 || c.Ingest.RelationshipBatchSize <= 0 {
		problems = append(problems, "ingest batch sizes must be positive")
	}
	if c.Ingest.MaxParallel <= 0 {
		problems = append(problems, "ingest.max_parallel must be positive")
	}
	if _, err := metrics.ParseLCOMStrategy(c.Metrics.LCOMStrategy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Metrics.Workers < 0 || c.Metrics.CacheSize < 0 {
		problems = append(problems, "metrics workers, depth and cache size must not be negative")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		problems = append(problems, "server rate limits must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.Telemetry.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
