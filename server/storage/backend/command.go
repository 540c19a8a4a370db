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
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

type jsonSchema struct {
	Required []string `bson:"required,omitempty"`
}

type validator struct {
	JSONSchema *jsonSchema `bson:"$jsonSchema,omitempty"`
}

type createCommand struct {
	Create         string             `bson:"create"`
	Capped         bool               `bson:"capped,omitempty"`
	Max            int64              `bson:"max,omitempty"`
	ClusteredIndex bson.RawValue      `bson:"clusteredIndex,omitempty"`
	Collation      *catalog.Collation `bson:"collation,omitempty"`
	Validator      *validator         `bson:"validator,omitempty"`
}

func (c *createCommand) clustered() bool {
	if c.ClusteredIndex.Type == 0 {
		return false
	}
	if v, ok := c.ClusteredIndex.BooleanOK(); ok {
		return v
	}
	return true
}

var emptyDoc, _ = bson.Marshal(bson.D{})

// acceptableCommandError reports errors a replayed command may hit because
// it already took effect.
func acceptableCommandError(cmd oplog.CommandType, err error) bool {
	switch cmd {
	case oplog.CommandCreate:
		return errors.IsNamespaceExists(err)
	case oplog.CommandDrop, oplog.CommandDropDatabase:
		return errors.IsNamespaceNotFound(err)
	}
	return false
}

// ApplyCommand implements apply.Storage.
func (b *Backend) ApplyCommand(ctx context.Context, e *oplog.Entry, mode oplog.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	cmd := e.CommandType()
	switch cmd {
	case oplog.CommandCreate:
		err = b.createCollection(e)
	case oplog.CommandDrop:
		err = b.dropCollection(e)
	case oplog.CommandDropDatabase:
		err = b.dropDatabase(e)
	case oplog.CommandCommitTransaction:
		err = b.commitPrepared(e)
	case oplog.CommandAbortTransaction:
		err = b.abortPrepared(e)
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnsupportedCommand, cmd)
	}
	if err != nil && mode != oplog.ModeApplyOps && acceptableCommandError(cmd, err) {
		b.lg.Debug("ignoring acceptable command error", zap.String("command", string(cmd)), zap.Stringer("namespace", e.NS), zap.Error(err))
		return nil
	}
	if err == nil {
		commandsTotal.WithLabelValues(string(cmd)).Inc()
	}
	return err
}

func (b *Backend) createCollection(e *oplog.Entry) error {
	var c createCommand
	if err := bson.Unmarshal(e.Object, &c); err != nil {
		return fmt.Errorf("%w: create: %v", errors.ErrBadOplogEntry, err)
	}
	if c.Create == "" {
		return fmt.Errorf("%w: create without a collection name", errors.ErrBadOplogEntry)
	}
	db := e.NS.DB()
	ns := oplog.NewNamespace(db, c.Create)
	id := uuid.New()
	if e.UUID != nil {
		id = *e.UUID
	}
	m := &collectionMeta{
		NS:        string(ns),
		UUID:      oplog.UUIDToBinary(id),
		Capped:    c.Capped,
		Max:       c.Max,
		Clustered: c.clustered(),
	}
	if c.Collation != nil && !c.Collation.IsSimple() {
		m.Collation = c.Collation
	}
	if c.Validator != nil && c.Validator.JSONSchema != nil {
		m.Required = c.Validator.JSONSchema.Required
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		existing, err := getMeta(tx, ns)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", errors.ErrNamespaceExists, ns)
		}
		if err := tx.Bucket(databasesBucket).Put([]byte(db), emptyDoc); err != nil {
			return err
		}
		if err := putMeta(tx, m); err != nil {
			return err
		}
		_, err = tx.CreateBucket(m.dataBucket())
		return err
	})
	if err == nil {
		b.lg.Info("created collection", zap.Stringer("namespace", ns), zap.Stringer("uuid", id), zap.Bool("capped", m.Capped))
	}
	return err
}

func dropMeta(tx *bolt.Tx, m *collectionMeta) error {
	if err := tx.DeleteBucket(m.dataBucket()); err != nil && err != bolt.ErrBucketNotFound {
		return err
	}
	if err := tx.Bucket(uuidsBucket).Delete(m.UUID.Data); err != nil {
		return err
	}
	return tx.Bucket(collectionsBucket).Delete([]byte(m.NS))
}

func (b *Backend) dropCollection(e *oplog.Entry) error {
	v, err := e.Object.LookupErr(string(oplog.CommandDrop))
	if err != nil {
		return fmt.Errorf("%w: drop without a collection name", errors.ErrBadOplogEntry)
	}
	coll, ok := v.StringValueOK()
	if !ok {
		return fmt.Errorf("%w: drop takes a collection name", errors.ErrBadOplogEntry)
	}
	ns := oplog.NewNamespace(e.NS.DB(), coll)
	err = b.db.Update(func(tx *bolt.Tx) error {
		m, err := getMeta(tx, ns)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("%w: %s", errors.ErrNamespaceNotFound, ns)
		}
		return dropMeta(tx, m)
	})
	if err == nil {
		b.lg.Info("dropped collection", zap.Stringer("namespace", ns))
	}
	return err
}

func (b *Backend) dropDatabase(e *oplog.Entry) error {
	db := e.NS.DB()
	dropped := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		dbs := tx.Bucket(databasesBucket)
		if dbs.Get([]byte(db)) == nil {
			return fmt.Errorf("%w: database %s", errors.ErrNamespaceNotFound, db)
		}
		var metas []*collectionMeta
		prefix := []byte(db + ".")
		cur := tx.Bucket(collectionsBucket).Cursor()
		for k, v := cur.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = cur.Next() {
			m, err := decodeMeta(v)
			if err != nil {
				return err
			}
			metas = append(metas, m)
		}
		for _, m := range metas {
			if err := dropMeta(tx, m); err != nil {
				return err
			}
		}
		dropped = len(metas)
		return dbs.Delete([]byte(db))
	})
	if err == nil {
		b.lg.Info("dropped database", zap.String("database", db), zap.Int("collections", dropped))
	}
	return err
}

// DatabaseExists implements apply.Storage.
func (b *Backend) DatabaseExists(_ context.Context, db string) (bool, error) {
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(databasesBucket).Get([]byte(db)) != nil
		return nil
	})
	return ok, err
}
