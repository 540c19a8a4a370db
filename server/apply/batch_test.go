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
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

func TestApplyOplogBatchAppliesCommandsFirst(t *testing.T) {
	st := newFakeStorage()
	a := newTestApplier(t, st, nil)

	ops := operations(
		commandOp(t, "b", oplog.CommandCreate, "x"),
		updateOp(t, "a.x", 1),
		deleteOp(t, "a.x", 2),
		commandOp(t, "a", oplog.CommandCreate, "x"),
	)
	require.NoError(t, a.ApplyOplogBatch(context.Background(), ops, BatchOptions{Mode: oplog.ModeSecondary}))
	assert.Equal(t, []string{"c a create", "c b create", "u a.x 1", "d a.x 2"}, st.log)
	assert.Equal(t, 1, st.validationDisabled)
	assert.Equal(t, 1, st.validationRestored)
}

func missingUpdateTarget(ops []*oplog.Entry) error {
	if ops[0].OpType == oplog.OpUpdate {
		return errors.ErrUpdateOperationFailed
	}
	return nil
}

func TestApplyOplogBatchMissingUpdateTarget(t *testing.T) {
	tests := []struct {
		mode    oplog.Mode
		wantErr bool
	}{
		{oplog.ModeInitialSync, false},
		{oplog.ModeRecovering, false},
		{oplog.ModeSecondary, true},
		{oplog.ModeApplyOps, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			st := newFakeStorage()
			st.crudErr = missingUpdateTarget
			a := newTestApplier(t, st, func(o *ApplierOptions) { o.EnforceSteadyStateConstraints = true })

			ops := operations(updateOp(t, "a.b", 1), insertOp(t, "a.b", 2))
			err := a.ApplyOplogBatch(context.Background(), ops, BatchOptions{Mode: tt.mode})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, []string{"i a.b 2"}, st.log)
				return
			}
			var aerr *ApplyError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, oplog.Namespace("a.b"), aerr.NS)
			require.ErrorIs(t, err, errors.ErrUpdateOperationFailed)
			assert.Empty(t, st.log)
		})
	}
}

func TestApplyOplogBatchMissingNamespace(t *testing.T) {
	newStorage := func() *fakeStorage {
		st := newFakeStorage()
		st.missingDBs["gone"] = true
		return st
	}
	ops := func() []oplog.ApplierOperation {
		return operations(insertOp(t, "gone.c", 1), updateOp(t, "gone.c", 2), insertOp(t, "a.b", 3))
	}

	st := newStorage()
	a := newTestApplier(t, st, nil)
	require.NoError(t, a.ApplyOplogBatch(context.Background(), ops(), BatchOptions{Mode: oplog.ModeInitialSync, AllowNamespaceNotFoundErrorsOnCrudOps: true}))
	assert.Equal(t, []string{"i a.b 3"}, st.log)

	st = newStorage()
	a = newTestApplier(t, st, nil)
	err := a.ApplyOplogBatch(context.Background(), ops(), BatchOptions{Mode: oplog.ModeInitialSync})
	require.ErrorIs(t, err, errors.ErrNamespaceNotFound)
	// a.b sorts before gone.c.
	assert.Equal(t, []string{"i a.b 3"}, st.log)
}

func TestApplyOplogBatchLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	st := newFakeStorage()
	st.crudErr = func([]*oplog.Entry) error { return stderrors.New("disk full") }
	a := NewApplier(ApplierOptions{Logger: zap.New(core), Storage: st})

	op := insertOp(t, "a.b", 1)
	err := a.ApplyOplogBatch(context.Background(), operations(op, insertOp(t, "c.d", 2)), BatchOptions{Mode: oplog.ModeSecondary})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	entries := logs.FilterMessage("failed to apply operation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, op.String(), entries[0].ContextMap()["oplog-entry"])
	assert.Equal(t, "secondary", entries[0].ContextMap()["mode"])
	// The batch stops at the first failure.
	assert.Len(t, st.crudCalls, 1)
	assert.Equal(t, 1, st.validationRestored)
}

func TestApplyOplogBatchStopsWhenCanceled(t *testing.T) {
	st := newFakeStorage()
	a := newTestApplier(t, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.ApplyOplogBatch(ctx, operations(insertOp(t, "a.b", 1)), BatchOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.crudCalls)
}
