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

package writer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/oplog"
	"go.etcd.io/oplogapply/server/session"
)

type fakeCatalog struct {
	colls   map[oplog.Namespace]*catalog.CollectionInfo
	lookups int
}

func newFakeCatalog(colls ...*catalog.CollectionInfo) *fakeCatalog {
	fc := &fakeCatalog{colls: make(map[oplog.Namespace]*catalog.CollectionInfo)}
	for _, c := range colls {
		fc.colls[c.NS] = c
	}
	return fc
}

func (f *fakeCatalog) LookupCollection(ns oplog.Namespace) (*catalog.CollectionInfo, error) {
	f.lookups++
	return f.colls[ns], nil
}

func (f *fakeCatalog) NamespaceOf(id uuid.UUID) (oplog.Namespace, bool, error) {
	for _, c := range f.colls {
		if c.UUID == id {
			return c.NS, true, nil
		}
	}
	return "", false, nil
}

type fakeSessions struct {
	requests []uint32
	// extra is added to the number of returned sessions.
	extra    int
	released int
}

func (f *fakeSessions) ReleaseSplitSessions(uuid.UUID, int64) error {
	f.released++
	return nil
}

func (f *fakeSessions) SplitSession(_ uuid.UUID, txnNumber int64, numSplits uint32) ([]session.SplitSession, error) {
	f.requests = append(f.requests, numSplits)
	out := make([]session.SplitSession, int(numSplits)+f.extra)
	for i := range out {
		out[i] = session.SplitSession{ID: uuid.New(), TxnNumber: txnNumber}
	}
	return out, nil
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

func prepareOp(t testing.TB, ops ...*oplog.Entry) *oplog.Entry {
	return applyOpsEntry(t, true, ops...)
}

// applyOpsEntry builds the applyOps entry of a transaction holding ops.
func applyOpsEntry(t testing.TB, prepare bool, ops ...*oplog.Entry) *oplog.Entry {
	lsid := uuid.New()
	txn := int64(1)
	inner := bson.A{}
	for _, op := range ops {
		d := bson.D{{Key: "op", Value: string(op.OpType)}, {Key: "ns", Value: string(op.NS)}, {Key: "o", Value: op.Object}}
		if len(op.Object2) > 0 {
			d = append(d, bson.E{Key: "o2", Value: op.Object2})
		}
		inner = append(inner, d)
	}
	return &oplog.Entry{
		OpType:    oplog.OpCommand,
		NS:        "admin.$cmd",
		Object:    mustDoc(t, bson.D{{Key: "applyOps", Value: inner}, {Key: "prepare", Value: prepare}}),
		SessionID: &lsid,
		TxnNumber: &txn,
	}
}

func entriesOf(ops []oplog.ApplierOperation) []*oplog.Entry {
	out := make([]*oplog.Entry, len(ops))
	for i, op := range ops {
		out[i] = op.Entry
	}
	return out
}
