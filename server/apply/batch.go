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
	"time"

	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
	"go.etcd.io/oplogapply/server/writer"
)

// ApplyOplogBatch applies one writer's vector in order. The vector is sorted
// in place so that commands precede data operations.
func (a *Applier) ApplyOplogBatch(ctx context.Context, ops []oplog.ApplierOperation, bo BatchOptions) error {
	start := time.Now()
	defer func() {
		took := time.Since(start)
		batchApplySec.Observe(took.Seconds())
		if took > a.warnApplyDuration {
			a.lg.Warn(
				"apply batch took too long",
				zap.Duration("took", took),
				zap.Duration("expected-duration", a.warnApplyDuration),
				zap.Int("operations", len(ops)),
			)
		}
	}()

	restore := a.storage.DisableDocumentValidation()
	defer restore()

	writer.StableSortByNamespace(ops)

	apply := func(ctx context.Context, g EntryOrGroupedInserts) error {
		return a.ApplyOplogEntryOrGroupedInserts(ctx, g, bo)
	}
	group := NewInsertGroup(a.lg, ops, a.insertGroup, apply)

	for i := 0; i < len(ops); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last, ok := group.GroupAndApplyInserts(ctx, i); ok {
			i = last
			continue
		}

		op := ops[i]
		err := apply(ctx, NewEntry(op))
		if err == nil {
			continue
		}
		if a.tolerated(op, err, bo) {
			continue
		}

		a.lg.Error(
			"failed to apply operation",
			zap.Stringer("oplog-entry", op.Entry),
			zap.Stringer("instruction", op.Instruction),
			zap.Stringer("mode", bo.Mode),
			zap.Error(err),
		)
		batchFailuresTotal.Inc()
		return &ApplyError{NS: op.Entry.NS, OpTime: op.Entry.OpTime, Err: err}
	}
	return nil
}

func (a *Applier) tolerated(op oplog.ApplierOperation, err error, bo BatchOptions) bool {
	// Updates may miss their document while replaying a range that is
	// not yet consistent.
	if errors.IsUpdateOperationFailed(err) &&
		(bo.Mode == oplog.ModeInitialSync || bo.Mode == oplog.ModeRecovering) {
		toleratedErrorsTotal.WithLabelValues(reasonUpdateTargetMissing).Inc()
		return true
	}
	if errors.IsNamespaceNotFound(err) &&
		op.Instruction == oplog.ApplyOplogEntry &&
		op.Entry.IsCrudOpType() &&
		bo.AllowNamespaceNotFoundErrorsOnCrudOps {
		toleratedErrorsTotal.WithLabelValues(reasonMissingNamespace).Inc()
		return true
	}
	return false
}
