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
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"

	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

type fakeStorage struct {
	mu sync.Mutex

	// missingDBs lists databases DatabaseExists reports as absent.
	missingDBs map[string]bool
	// uuids maps collection UUIDs to their namespace.
	uuids map[uuid.UUID]oplog.Namespace
	// conflicts is the number of write conflicts returned before a write succeeds.
	conflicts int
	crudErr   func(ops []*oplog.Entry) error
	// preparedErr fails every ApplyPreparedOps call.
	preparedErr error

	// log records every successful write in order.
	log       []string
	crudCalls [][]*oplog.Entry
	crudOpts  []CrudOptions
	prepared  []oplog.ApplierOperation

	validationDisabled int
	validationRestored int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{missingDBs: make(map[string]bool), uuids: make(map[uuid.UUID]oplog.Namespace)}
}

func (f *fakeStorage) NamespaceOf(id uuid.UUID) (oplog.Namespace, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.uuids[id]
	return ns, ok, nil
}

func (f *fakeStorage) DatabaseExists(_ context.Context, db string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.missingDBs[db], nil
}

func (f *fakeStorage) conflict() error {
	if f.conflicts > 0 {
		f.conflicts--
		return fmt.Errorf("injected: %w", errors.ErrWriteConflict)
	}
	return nil
}

func (f *fakeStorage) ApplyCrud(_ context.Context, ops []*oplog.Entry, opts CrudOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crudCalls = append(f.crudCalls, ops)
	f.crudOpts = append(f.crudOpts, opts)
	if err := f.conflict(); err != nil {
		return err
	}
	if f.crudErr != nil {
		if err := f.crudErr(ops); err != nil {
			return err
		}
	}
	for _, op := range ops {
		f.log = append(f.log, fmt.Sprintf("%s %s %s", op.OpType, op.NS, op.IDElement()))
	}
	return nil
}

func (f *fakeStorage) ApplyCommand(_ context.Context, op *oplog.Entry, _ oplog.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.conflict(); err != nil {
		return err
	}
	f.log = append(f.log, fmt.Sprintf("c %s %s", op.NS.DB(), op.CommandType()))
	return nil
}

func (f *fakeStorage) ApplyPreparedOps(_ context.Context, op oplog.ApplierOperation, _ oplog.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.conflict(); err != nil {
		return err
	}
	if f.preparedErr != nil {
		return f.preparedErr
	}
	f.prepared = append(f.prepared, op)
	return nil
}

func (f *fakeStorage) DisableDocumentValidation() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validationDisabled++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.validationRestored++
	}
}

type fakeDropHook struct {
	dbs []string
}

func (h *fakeDropHook) PauseWhileSet(_ context.Context, db string) bool {
	h.dbs = append(h.dbs, db)
	return true
}

func newTestApplier(t testing.TB, st Storage, mutate func(*ApplierOptions)) *Applier {
	opts := ApplierOptions{Logger: zaptest.NewLogger(t), Storage: st}
	if mutate != nil {
		mutate(&opts)
	}
	return NewApplier(opts)
}

func mustDoc(t testing.TB, d bson.D) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(d)
	require.NoError(t, err)
	return b
}

func insertOp(t testing.TB, ns oplog.Namespace, id any) *oplog.Entry {
	return &oplog.Entry{OpType: oplog.OpInsert, NS: ns, Object: mustDoc(t, bson.D{{Key: "_id", Value: id}})}
}

func deleteOp(t testing.TB, ns oplog.Namespace, id any) *oplog.Entry {
	return &oplog.Entry{OpType: oplog.OpDelete, NS: ns, Object: mustDoc(t, bson.D{{Key: "_id", Value: id}})}
}

func updateOp(t testing.TB, ns oplog.Namespace, id any) *oplog.Entry {
	return &oplog.Entry{
		OpType:  oplog.OpUpdate,
		NS:      ns,
		Object:  mustDoc(t, bson.D{{Key: "$set", Value: bson.D{{Key: "x", Value: 1}}}}),
		Object2: mustDoc(t, bson.D{{Key: "_id", Value: id}}),
	}
}

func commandOp(t testing.TB, db string, cmd oplog.CommandType, arg any) *oplog.Entry {
	return &oplog.Entry{
		OpType: oplog.OpCommand,
		NS:     oplog.NewNamespace(db, "$cmd"),
		Object: mustDoc(t, bson.D{{Key: string(cmd), Value: arg}}),
	}
}

func operations(es ...*oplog.Entry) []oplog.ApplierOperation {
	out := make([]oplog.ApplierOperation, len(es))
	for i, e := range es {
		out[i] = oplog.NewApplierOperation(e)
	}
	return out
}
