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
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/apply"
	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/oplog"
	"go.etcd.io/oplogapply/server/session"
	"go.etcd.io/oplogapply/server/storage/backend"
)

func NewPartitionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "partition <oplog file>",
		Short: "partition prints how oplog entries are assigned to writers without applying them.",
		Args:  cobra.ExactArgs(1),
		RunE:  partitionCommandFunc,
	}
}

// emptyCatalog resolves no collection, so every namespace uses the
// default properties.
type emptyCatalog struct{}

func (emptyCatalog) LookupCollection(oplog.Namespace) (*catalog.CollectionInfo, error) {
	return nil, nil
}

func (emptyCatalog) NamespaceOf(uuid.UUID) (oplog.Namespace, bool, error) {
	return "", false, nil
}

func partitionCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Sync()

	entries, err := readEntriesFile(args[0])
	if err != nil {
		return err
	}

	// Collection properties come from the data file when there is one.
	var cat catalog.Catalog = emptyCatalog{}
	if _, err := os.Stat(cfg.DataFile); err == nil {
		be, err := backend.Open(backend.Config{Path: cfg.DataFile, Logger: lg})
		if err != nil {
			return err
		}
		defer be.Close()
		cat = be
	} else {
		lg.Info("no data file, partitioning with default collection properties", zap.String("data-file", cfg.DataFile))
	}

	p := apply.NewPipeline(apply.PipelineOptions{
		Logger:   lg,
		Catalog:  cat,
		Sessions: session.NewSplitPrepareSessionManager(nil),
		Writers:  cfg.WriterThreads,
		Limits:   cfg.BatchLimits(),
	})

	var rows []laneRow
	batches := oplog.Batches(entries, cfg.BatchLimits())
	for i, batch := range batches {
		vectors, _, err := p.Partition(batch)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		rows = append(rows, laneRows(i, vectors)...)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d entries, %d batches, %d writers\n", len(entries), len(batches), cfg.WriterThreads)
	printPartition(cmd.OutOrStdout(), rows)
	return nil
}
