// Copyright 2026 The etcd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the applier configuration.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"sigs.k8s.io/yaml"

	"go.etcd.io/oplogapply/server/oplog"
)

const (
	DefaultDataFile             = "oplog.db"
	DefaultMaxWriterThreads     = 16
	DefaultBatchMaxOps          = 5000
	DefaultBatchMaxBytes        = 100 * 1024 * 1024
	DefaultInsertGroupMaxOps    = 64
	DefaultInsertGroupMaxBytes  = 256 * 1024
	DefaultWarningApplyDuration = time.Second
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"

	StdErrLogOutput = "stderr"
	StdOutLogOutput = "stdout"
)

// Config is loaded from YAML; field names follow the command line flags.
type Config struct {
	DataFile string `json:"data-file"`
	NoSync   bool   `json:"no-sync"`

	// WriterThreads is the number of writer lanes a batch is split into.
	WriterThreads int    `json:"writer-threads"`
	Mode          string `json:"mode"`

	EnforceSteadyStateConstraints         bool `json:"enforce-steady-state-constraints"`
	AllowNamespaceNotFoundErrorsOnCrudOps bool `json:"allow-namespace-not-found-errors-on-crud-ops"`
	IsDataConsistent                      bool `json:"is-data-consistent"`

	BatchMaxOps         int `json:"batch-max-ops"`
	BatchMaxBytes       int `json:"batch-max-bytes"`
	InsertGroupMaxOps   int `json:"insert-group-max-ops"`
	InsertGroupMaxBytes int `json:"insert-group-max-bytes"`

	// WriteConflictMaxAttempts bounds write conflict retries; 0 retries forever.
	WriteConflictMaxAttempts int           `json:"write-conflict-max-attempts"`
	WarningApplyDuration     time.Duration `json:"warning-apply-duration"`

	LogLevel   string   `json:"log-level"`
	LogFormat  string   `json:"log-format"`
	LogOutputs []string `json:"log-outputs"`
}

func defaultWriterThreads() int {
	n := runtime.GOMAXPROCS(0)
	if n > DefaultMaxWriterThreads {
		n = DefaultMaxWriterThreads
	}
	return n
}

func NewConfig() *Config {
	return &Config{
		DataFile:             DefaultDataFile,
		WriterThreads:        defaultWriterThreads(),
		Mode:                 oplog.ModeSecondary.String(),
		IsDataConsistent:     true,
		BatchMaxOps:          DefaultBatchMaxOps,
		BatchMaxBytes:        DefaultBatchMaxBytes,
		InsertGroupMaxOps:    DefaultInsertGroupMaxOps,
		InsertGroupMaxBytes:  DefaultInsertGroupMaxBytes,
		WarningApplyDuration: DefaultWarningApplyDuration,
		LogLevel:             DefaultLogLevel,
		LogFormat:            DefaultLogFormat,
		LogOutputs:           []string{StdErrLogOutput},
	}
}

// ConfigFromFile reads a YAML file on top of the defaults.
func ConfigFromFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (cfg *Config) Validate() error {
	if cfg.DataFile == "" {
		return fmt.Errorf("data-file must be set")
	}
	if cfg.WriterThreads <= 0 {
		return fmt.Errorf("writer-threads must be positive, got %d", cfg.WriterThreads)
	}
	if _, err := oplog.ParseMode(cfg.Mode); err != nil {
		return err
	}
	for name, v := range map[string]int{
		"batch-max-ops":               cfg.BatchMaxOps,
		"batch-max-bytes":             cfg.BatchMaxBytes,
		"insert-group-max-ops":        cfg.InsertGroupMaxOps,
		"insert-group-max-bytes":      cfg.InsertGroupMaxBytes,
		"write-conflict-max-attempts": cfg.WriteConflictMaxAttempts,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log-format %q (only supports %q, %q)", cfg.LogFormat, "json", "console")
	}
	return nil
}

// ApplyMode returns the parsed Mode.
func (cfg *Config) ApplyMode() oplog.Mode {
	m, err := oplog.ParseMode(cfg.Mode)
	if err != nil {
		panic(err)
	}
	return m
}

func (cfg *Config) BatchLimits() oplog.BatchLimits {
	return oplog.BatchLimits{MaxOps: cfg.BatchMaxOps, MaxBytes: cfg.BatchMaxBytes}
}
