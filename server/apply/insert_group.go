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

	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/oplog"
)

type applyFunc func(ctx context.Context, g EntryOrGroupedInserts) error

// InsertGroup batches consecutive inserts into the same collection so they
// are applied as a single write.
type InsertGroup struct {
	lg    *zap.Logger
	ops   []oplog.ApplierOperation
	opts  InsertGroupOptions
	apply applyFunc

	// Operations before this index are part of a group that failed as a
	// whole and must be applied one by one.
	doNotGroupBeforePoint int
}

func NewInsertGroup(lg *zap.Logger, ops []oplog.ApplierOperation, opts InsertGroupOptions, apply applyFunc) *InsertGroup {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &InsertGroup{lg: lg, ops: ops, opts: opts, apply: apply}
}

func groupable(op oplog.ApplierOperation) bool {
	return op.Instruction == oplog.ApplyOplogEntry &&
		op.Entry.OpType == oplog.OpInsert &&
		!op.Entry.IsForCappedCollection()
}

func sameCollection(a, b *oplog.Entry) bool {
	if a.NS != b.NS {
		return false
	}
	if a.UUID == nil || b.UUID == nil {
		return a.UUID == b.UUID
	}
	return *a.UUID == *b.UUID
}

// GroupAndApplyInserts applies the inserts starting at index i as one group.
// It returns the index of the last grouped operation and true on success.
// It returns false when no group was formed or the group failed, in which
// case the caller applies ops[i] by itself.
func (g *InsertGroup) GroupAndApplyInserts(ctx context.Context, i int) (int, bool) {
	if i < g.doNotGroupBeforePoint {
		return i, false
	}
	first := g.ops[i]
	if !groupable(first) {
		return i, false
	}

	end := i + 1
	bytes := first.Entry.Size()
	for end < len(g.ops) && end-i < g.opts.MaxOps {
		next := g.ops[end]
		if !groupable(next) || !sameCollection(first.Entry, next.Entry) {
			break
		}
		if bytes+next.Entry.Size() > g.opts.MaxBytes {
			break
		}
		bytes += next.Entry.Size()
		end++
	}
	if end-i < 2 {
		return i, false
	}

	if err := g.apply(ctx, NewGroupedInserts(g.ops[i:end])); err != nil {
		insertGroupFallbacksTotal.Inc()
		g.lg.Debug(
			"failed to apply grouped inserts, applying individually",
			zap.Stringer("namespace", first.Entry.NS),
			zap.Int("inserts", end-i),
			zap.Error(err),
		)
		g.doNotGroupBeforePoint = end
		return i, false
	}
	insertGroupsTotal.Inc()
	return end - 1, true
}
