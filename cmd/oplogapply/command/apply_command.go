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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/pkg/failpoint"
	"go.etcd.io/oplogapply/server/apply"
	"go.etcd.io/oplogapply/server/config"
	"go.etcd.io/oplogapply/server/session"
	"go.etcd.io/oplogapply/server/storage/backend"
)

var pauseAfterDropDB string

func NewApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <oplog file>",
		Short: "apply replays extended JSON oplog entries into the data file.",
		Args:  cobra.ExactArgs(1),
		RunE:  applyCommandFunc,
	}
	cmd.Flags().StringVar(&pauseAfterDropDB, "pause-after-drop", "",
		"pause after a collection of this database is dropped until SIGUSR1 is received (empty matches no database)")
	return cmd
}

func newApplier(lg *zap.Logger, cfg *config.Config, st apply.Storage, hook apply.DropHook) *apply.Applier {
	return apply.NewApplier(apply.ApplierOptions{
		Logger:                        lg,
		Storage:                       st,
		EnforceSteadyStateConstraints: cfg.EnforceSteadyStateConstraints,
		WriteConflict:                 apply.WriteConflictPolicy{MaxAttempts: cfg.WriteConflictMaxAttempts},
		InsertGroup: apply.InsertGroupOptions{
			MaxOps:   cfg.InsertGroupMaxOps,
			MaxBytes: cfg.InsertGroupMaxBytes,
		},
		DropHook:             hook,
		WarningApplyDuration: cfg.WarningApplyDuration,
	})
}

func batchOptions(cfg *config.Config) apply.BatchOptions {
	return apply.BatchOptions{
		Mode:                                  cfg.ApplyMode(),
		AllowNamespaceNotFoundErrorsOnCrudOps: cfg.AllowNamespaceNotFoundErrorsOnCrudOps,
		IsDataConsistent:                      cfg.IsDataConsistent,
	}
}

// dropPause returns a pause point released by SIGUSR1, or nil.
func dropPause(ctx context.Context, lg *zap.Logger, db string) apply.DropHook {
	if db == "" {
		return nil
	}
	p := failpoint.NewPause("hangAfterApplyingCollectionDrop")
	p.Enable(db)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			lg.Info("releasing drop pause", zap.String("database", db))
		case <-ctx.Done():
		}
		p.Disable()
	}()
	return p
}

func applyCommandFunc(cmd *cobra.Command, args []string) error {
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

	be, err := backend.Open(backend.Config{Path: cfg.DataFile, Logger: lg, NoSync: cfg.NoSync})
	if err != nil {
		return err
	}
	defer be.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := apply.NewPipeline(apply.PipelineOptions{
		Logger:   lg,
		Applier:  newApplier(lg, cfg, be, dropPause(ctx, lg, pauseAfterDropDB)),
		Catalog:  be,
		Sessions: session.NewSplitPrepareSessionManager(nil),
		Writers:  cfg.WriterThreads,
		Limits:   cfg.BatchLimits(),
		Batch:    batchOptions(cfg),
	})
	st, err := p.Run(ctx, entries)
	if err != nil {
		return err
	}

	colls, err := be.Stats()
	if err != nil {
		return err
	}
	printApplySummary(cmd.OutOrStdout(), st, colls)
	return nil
}
