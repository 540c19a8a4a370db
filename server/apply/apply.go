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

package apply

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

// EntryOrGroupedInserts is either a single operation or a run of inserts
// into the same collection applied as one write.
type EntryOrGroupedInserts struct {
	ops []oplog.ApplierOperation
}

func NewEntry(op oplog.ApplierOperation) EntryOrGroupedInserts {
	return EntryOrGroupedInserts{ops: []oplog.ApplierOperation{op}}
}

func NewGroupedInserts(ops []oplog.ApplierOperation) EntryOrGroupedInserts {
	return EntryOrGroupedInserts{ops: ops}
}

// Op returns the first operation.
func (g EntryOrGroupedInserts) Op() oplog.ApplierOperation { return g.ops[0] }

func (g EntryOrGroupedInserts) IsGroupedInserts() bool { return len(g.ops) > 1 }

func (g EntryOrGroupedInserts) Len() int { return len(g.ops) }

func (g EntryOrGroupedInserts) Entries() []*oplog.Entry {
	es := make([]*oplog.Entry, len(g.ops))
	for i := range g.ops {
		es[i] = g.ops[i].Entry
	}
	return es
}

type Applier struct {
	lg                  *zap.Logger
	storage             Storage
	enforceSteadyState  bool
	writeConflictPolicy WriteConflictPolicy
	insertGroup         InsertGroupOptions
	dropHook            DropHook
	opsApplied          func(n int)
	warnApplyDuration   time.Duration
}

func NewApplier(opts ApplierOptions) *Applier {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	if opts.Storage == nil {
		lg.Panic("applier requires a storage")
	}
	ig := opts.InsertGroup
	if ig.MaxOps <= 0 {
		ig.MaxOps = DefaultInsertGroupMaxOps
	}
	if ig.MaxBytes <= 0 {
		ig.MaxBytes = DefaultInsertGroupMaxBytes
	}
	warn := opts.WarningApplyDuration
	if warn <= 0 {
		warn = DefaultWarningApplyDuration
	}
	return &Applier{
		lg:                  lg,
		storage:             opts.Storage,
		enforceSteadyState:  opts.EnforceSteadyStateConstraints,
		writeConflictPolicy: opts.WriteConflict.withDefaults(),
		insertGroup:         ig,
		dropHook:            opts.DropHook,
		opsApplied:          opts.OpsApplied,
		warnApplyDuration:   warn,
	}
}

func (a *Applier) incrementOpsApplied(n int) {
	opsAppliedTotal.Add(float64(n))
	if a.opsApplied != nil {
		a.opsApplied(n)
	}
}

// ApplyOplogEntryOrGroupedInserts applies one unit, retrying write conflicts.
func (a *Applier) ApplyOplogEntryOrGroupedInserts(ctx context.Context, g EntryOrGroupedInserts, bo BatchOptions) error {
	op := g.Op()
	if op.IsSplitPrepare() {
		return a.applySplitPrepare(ctx, op, bo)
	}

	e := op.Entry
	switch {
	case e.OpType == oplog.OpNoop:
		a.incrementOpsApplied(1)
		return nil
	case e.IsCrudOpType():
		return a.applyCrud(ctx, g, bo)
	case e.IsCommand():
		return a.applyCommand(ctx, e, bo)
	}
	a.lg.Panic("unexpected oplog entry type", zap.Stringer("oplog-entry", e))
	return nil
}

func (a *Applier) applyCrud(ctx context.Context, g EntryOrGroupedInserts, bo BatchOptions) error {
	e := g.Op().Entry
	return writeConflictRetry(ctx, a.lg, a.writeConflictPolicy, "applyOplogEntryOrGroupedInserts_CRUD", e.NS, func() error {
		err := a.applyCrudOnce(ctx, g, bo)
		if err == nil {
			return nil
		}
		if !errors.IsNamespaceNotFound(err) {
			return err
		}
		// Deletes of collections dropped later in the oplog are expected on
		// secondaries that do not enforce steady state constraints.
		if e.OpType == oplog.OpDelete &&
			!a.enforceSteadyState &&
			bo.Mode == oplog.ModeSecondary &&
			bo.AllowNamespaceNotFoundErrorsOnCrudOps {
			toleratedErrorsTotal.WithLabelValues(reasonDeleteFromMissingNamespace).Inc()
			return nil
		}
		return fmt.Errorf("failed to apply operation %s: %w", e, err)
	})
}

func (a *Applier) applyCrudOnce(ctx context.Context, g EntryOrGroupedInserts, bo BatchOptions) error {
	e := g.Op().Entry
	ns, err := a.targetNamespace(e)
	if err != nil {
		return err
	}
	if db := ns.DB(); db != "" {
		ok, err := a.storage.DatabaseExists(ctx, db)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: missing database (%s)", errors.ErrNamespaceNotFound, db)
		}
	}
	err = a.storage.ApplyCrud(ctx, g.Entries(), CrudOptions{
		AlwaysUpsert:     !a.enforceSteadyState && bo.Mode == oplog.ModeSecondary,
		Mode:             bo.Mode,
		IsDataConsistent: bo.IsDataConsistent,
	})
	if err != nil {
		return err
	}
	a.incrementOpsApplied(g.Len())
	return nil
}

// targetNamespace is the namespace a CRUD entry writes to. The collection
// UUID wins over the entry's ns when it resolves.
func (a *Applier) targetNamespace(e *oplog.Entry) (oplog.Namespace, error) {
	if e.UUID == nil {
		return e.NS, nil
	}
	ns, ok, err := a.storage.NamespaceOf(*e.UUID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve collection %s: %w", e.UUID, err)
	}
	if !ok {
		return e.NS, nil
	}
	return ns, nil
}

func (a *Applier) applyCommand(ctx context.Context, e *oplog.Entry, bo BatchOptions) error {
	err := writeConflictRetry(ctx, a.lg, a.writeConflictPolicy, "applyOplogEntryOrGroupedInserts_command", e.NS, func() error {
		if err := a.storage.ApplyCommand(ctx, e, bo.Mode); err != nil {
			return err
		}
		a.incrementOpsApplied(1)
		return nil
	})

	if e.CommandType() == oplog.CommandDrop && a.dropHook != nil {
		// gofail: var hangAfterApplyingCollectionDropInOplogApplication struct{}
		if a.dropHook.PauseWhileSet(ctx, e.NS.DB()) {
			a.lg.Info(
				"resumed after collection drop pause",
				zap.String("database", e.NS.DB()),
				zap.Stringer("oplog-entry", e),
			)
		}
	}
	return err
}

func (a *Applier) applySplitPrepare(ctx context.Context, op oplog.ApplierOperation, bo BatchOptions) error {
	return writeConflictRetry(ctx, a.lg, a.writeConflictPolicy, "applySplitPrepareOps", op.Entry.NS, func() error {
		if err := a.storage.ApplyPreparedOps(ctx, op, bo.Mode); err != nil {
			return err
		}
		a.incrementOpsApplied(len(op.SubOps))
		return nil
	})
}
