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

package command

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/config"
	"go.etcd.io/oplogapply/server/oplog"
)

const maxEntryLine = 16 * 1024 * 1024

var (
	configFile string
	dataFile   string
	writers    int
	mode       string
	batchSize  int
	logLevel   string
)

// RegisterGlobalFlags adds the flags shared by every subcommand.
func RegisterGlobalFlags(root *cobra.Command) {
	fs := root.PersistentFlags()
	fs.StringVar(&configFile, "config", "", "path to a YAML configuration file")
	fs.StringVar(&dataFile, "data-file", config.DefaultDataFile, "path to the bbolt data file")
	fs.IntVar(&writers, "writers", 0, "number of writer lanes (default from config)")
	fs.StringVar(&mode, "mode", "", "application mode: secondary, initial-sync, recovering, apply-ops")
	fs.IntVar(&batchSize, "batch-size", 0, "max entries per batch (default from config)")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads --config when given and lets explicit flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.ConfigFromFile(configFile); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("data-file") {
		cfg.DataFile = dataFile
	}
	if flags.Changed("writers") {
		cfg.WriterThreads = writers
	}
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("batch-size") {
		cfg.BatchMaxOps = batchSize
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lcfg, err := cfg.ZapLoggerConfig()
	if err != nil {
		return nil, err
	}
	lcfg.Encoding = "console"
	return lcfg.Build()
}

// readEntries decodes one extended JSON oplog entry per line. Blank lines
// are skipped.
func readEntries(r io.Reader) ([]*oplog.Entry, error) {
	var entries []*oplog.Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEntryLine)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		e, err := oplog.ParseExtJSON(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

func readEntriesFile(path string) ([]*oplog.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readEntries(f)
}
