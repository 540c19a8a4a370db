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

// Package writer partitions oplog entries across a fixed number of writer
// vectors. Entries that touch the same document always land on the same
// writer, and inserts into capped collections are serialized onto one
// writer per collection.
package writer

import (
	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/oplog"
)

// processCrudOp mixes the document identity into hash and marks capped
// collection inserts.
func processCrudOp(op *oplog.Entry, hash *uint32, props catalog.CollectionProperties) {
	// Include the _id of the document in the hash so we get parallelism even
	// if all writes are to a single collection. Capped collections must
	// preserve insertion order, except clustered capped collections whose
	// monotonically increasing cluster key already guarantees it.
	if !props.IsCapped || props.IsClustered {
		idHash := newElementHasher(props.Collator).hash(op.IDElement())
		*hash = combineHash(*hash, idHash)
	}

	// Capped collection inserts must never be bulk inserted.
	if op.OpType == oplog.OpInsert && props.IsCapped {
		op.SetIsForCappedCollection(true)
	}
}

// WriterID returns the writer op must be applied by. When forceWriterID is
// set it overrides the computed hash.
func WriterID(op *oplog.Entry, cache *catalog.PropertiesCache, numWriters uint32, forceWriterID *uint32) (uint32, error) {
	if numWriters == 0 {
		panic("writer: number of writers must be positive")
	}
	ns, err := cache.ResolveNamespace(op)
	if err != nil {
		return 0, err
	}
	hash := hashNamespace(string(ns))

	if op.IsCrudOpType() {
		props, err := cache.GetCollectionProperties(ns)
		if err != nil {
			return 0, err
		}
		processCrudOp(op, &hash, props)
	}

	if forceWriterID != nil {
		return *forceWriterID % numWriters, nil
	}
	return hash % numWriters, nil
}
