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
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/apply"
	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

var (
	_ apply.Storage   = (*Backend)(nil)
	_ catalog.Catalog = (*Backend)(nil)
)

// collection is a collection's data bucket inside a write transaction.
type collection struct {
	meta *collectionMeta
	b    *bolt.Bucket
}

func openCollection(tx *bolt.Tx, m *collectionMeta) (*collection, error) {
	b := tx.Bucket(m.dataBucket())
	if b == nil {
		return nil, fmt.Errorf("missing data bucket for %s", m.NS)
	}
	return &collection{meta: m, b: b}, nil
}

// find returns the key and document stored for id, or nil when absent.
// Documents of capped collections are keyed by insertion order and need a
// scan.
func (c *collection) find(id bson.RawValue) ([]byte, bson.Raw) {
	if !c.meta.Capped {
		k := idKey(id)
		if v := c.b.Get(k); v != nil {
			return k, v
		}
		return nil, nil
	}
	want := idKey(id)
	cur := c.b.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		got, err := documentID(v)
		if err == nil && bytes.Equal(idKey(got), want) {
			return append([]byte(nil), k...), v
		}
	}
	return nil, nil
}

// put stores doc under key, or under a new key when key is nil.
func (c *collection) put(key []byte, id bson.RawValue, doc bson.Raw) error {
	if !c.meta.Capped {
		return c.b.Put(idKey(id), doc)
	}
	if key != nil {
		return c.b.Put(key, doc)
	}
	seq, err := c.b.NextSequence()
	if err != nil {
		return err
	}
	if err := c.b.Put(seqKey(seq), doc); err != nil {
		return err
	}
	return c.evict()
}

// evict drops the oldest documents of a capped collection beyond its max.
func (c *collection) evict() error {
	if c.meta.Max <= 0 {
		return nil
	}
	var n int64
	cur := c.b.Cursor()
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		n++
	}
	for k, _ := cur.First(); k != nil && n > c.meta.Max; k, _ = cur.First() {
		if err := cur.Delete(); err != nil {
			return err
		}
		n--
	}
	return nil
}

func (b *Backend) validate(m *collectionMeta, doc bson.Raw) error {
	if !b.validationEnabled() {
		return nil
	}
	for _, field := range m.Required {
		if _, err := doc.LookupErr(field); err != nil {
			return fmt.Errorf("%w: %s requires field %q", errors.ErrDocumentValidation, m.NS, field)
		}
	}
	return nil
}

// ApplyCrud implements apply.Storage. A group is applied in a single
// transaction, so either every operation lands or none does.
func (b *Backend) ApplyCrud(ctx context.Context, ops []*oplog.Entry, opts apply.CrudOptions) error {
	if len(ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := b.db.Update(func(tx *bolt.Tx) error {
		m, err := resolve(tx, ops[0])
		if err != nil {
			return err
		}
		c, err := openCollection(tx, m)
		if err != nil {
			return err
		}
		for _, op := range ops {
			if err := b.applyCrudOp(c, op, opts.AlwaysUpsert); err != nil {
				return err
			}
		}
		return nil
	})
	commitSec.Observe(time.Since(start).Seconds())
	if err == nil {
		for _, op := range ops {
			writesTotal.WithLabelValues(string(op.OpType)).Inc()
		}
	}
	return err
}

func (b *Backend) applyCrudOp(c *collection, op *oplog.Entry, alwaysUpsert bool) error {
	switch op.OpType {
	case oplog.OpInsert:
		return b.insert(c, op)
	case oplog.OpUpdate:
		return b.update(c, op, alwaysUpsert)
	case oplog.OpDelete:
		return b.remove(c, op)
	}
	return fmt.Errorf("%w: %s is not a CRUD operation", errors.ErrBadOplogEntry, op)
}

// insert stores the document, replacing one with the same _id so that
// replaying an insert is idempotent.
func (b *Backend) insert(c *collection, op *oplog.Entry) error {
	id, err := documentID(op.Object)
	if err != nil {
		return err
	}
	if err := b.validate(c.meta, op.Object); err != nil {
		return err
	}
	key, _ := c.find(id)
	return c.put(key, id, op.Object)
}

func (b *Backend) update(c *collection, op *oplog.Entry, alwaysUpsert bool) error {
	id := op.IDElement()
	if id.Type == 0 {
		return fmt.Errorf("%w: update without _id", errors.ErrBadOplogEntry)
	}
	key, cur := c.find(id)
	var base bson.D
	switch {
	case cur != nil:
		d, err := toD(cur)
		if err != nil {
			return err
		}
		base = d
	case alwaysUpsert:
		b.lg.Debug("upserting missing document", zap.Stringer("namespace", op.NS), zap.Stringer("id", id))
		base = bson.D{{Key: "_id", Value: id}}
	default:
		return fmt.Errorf("%w: %s _id %s", errors.ErrUpdateOperationFailed, op.NS, id)
	}

	next, err := applyUpdate(base, id, op.Object)
	if err != nil {
		return err
	}
	doc, err := bson.Marshal(next)
	if err != nil {
		return err
	}
	if err := b.validate(c.meta, doc); err != nil {
		return err
	}
	return c.put(key, id, doc)
}

// remove deletes the document; deleting a missing document is a no-op.
func (b *Backend) remove(c *collection, op *oplog.Entry) error {
	id, err := documentID(op.Object)
	if err != nil {
		return err
	}
	key, _ := c.find(id)
	if key == nil {
		return nil
	}
	return c.b.Delete(key)
}
