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

package backend

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/v2/bson"

	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

// CollectionStats summarizes one collection.
type CollectionStats struct {
	NS     oplog.Namespace
	Capped bool
	Docs   int
	Bytes  int64
}

func (b *Backend) readCollection(ns oplog.Namespace, fn func(m *collectionMeta, bk *bolt.Bucket) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		m, err := getMeta(tx, ns)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("%w: %s", errors.ErrNamespaceNotFound, ns)
		}
		bk := tx.Bucket(m.dataBucket())
		if bk == nil {
			return fmt.Errorf("missing data bucket for %s", ns)
		}
		return fn(m, bk)
	})
}

// FindByID returns a copy of the document with the given _id, or nil.
func (b *Backend) FindByID(ns oplog.Namespace, id any) (bson.Raw, error) {
	t, v, err := bson.MarshalValue(id)
	if err != nil {
		return nil, err
	}
	rv := bson.RawValue{Type: t, Value: v}
	var doc bson.Raw
	err = b.readCollection(ns, func(m *collectionMeta, bk *bolt.Bucket) error {
		_, found := (&collection{meta: m, b: bk}).find(rv)
		if found != nil {
			doc = append(bson.Raw(nil), found...)
		}
		return nil
	})
	return doc, err
}

// Documents returns copies of every document in storage order.
func (b *Backend) Documents(ns oplog.Namespace) ([]bson.Raw, error) {
	var docs []bson.Raw
	err := b.readCollection(ns, func(_ *collectionMeta, bk *bolt.Bucket) error {
		return bk.ForEach(func(_, v []byte) error {
			docs = append(docs, append(bson.Raw(nil), v...))
			return nil
		})
	})
	return docs, err
}

func (b *Backend) Stats() ([]CollectionStats, error) {
	var out []CollectionStats
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(collectionsBucket).ForEach(func(_, v []byte) error {
			m, err := decodeMeta(v)
			if err != nil {
				return err
			}
			s := CollectionStats{NS: oplog.Namespace(m.NS), Capped: m.Capped}
			if bk := tx.Bucket(m.dataBucket()); bk != nil {
				err = bk.ForEach(func(_, doc []byte) error {
					s.Docs++
					s.Bytes += int64(len(doc))
					return nil
				})
			}
			out = append(out, s)
			return err
		})
	})
	return out, err
}

// PreparedCount returns the number of staged prepared transaction shares.
func (b *Backend) PreparedCount() (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(preparedBucket).Stats().KeyN
		return nil
	})
	return n, err
}
