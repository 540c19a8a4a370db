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
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/v2/bson"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

// collectionMeta is the value stored in the collections bucket.
type collectionMeta struct {
	NS        string             `bson:"ns"`
	UUID      bson.Binary        `bson:"uuid"`
	Capped    bool               `bson:"capped,omitempty"`
	Max       int64              `bson:"max,omitempty"`
	Clustered bool               `bson:"clustered,omitempty"`
	Collation *catalog.Collation `bson:"collation,omitempty"`
	Required  []string           `bson:"required,omitempty"`
}

func decodeMeta(v []byte) (*collectionMeta, error) {
	var m collectionMeta
	if err := bson.Unmarshal(v, &m); err != nil {
		return nil, fmt.Errorf("corrupt collection metadata: %w", err)
	}
	return &m, nil
}

func (m *collectionMeta) id() (uuid.UUID, error) {
	return uuid.FromBytes(m.UUID.Data)
}

func (m *collectionMeta) info() (*catalog.CollectionInfo, error) {
	id, err := m.id()
	if err != nil {
		return nil, fmt.Errorf("corrupt uuid for %s: %w", m.NS, err)
	}
	return &catalog.CollectionInfo{
		NS:        oplog.Namespace(m.NS),
		UUID:      id,
		Capped:    m.Capped,
		Clustered: m.Clustered,
		Collation: m.Collation,
	}, nil
}

func (m *collectionMeta) dataBucket() []byte {
	return append([]byte("coll/"), m.UUID.Data...)
}

func getMeta(tx *bolt.Tx, ns oplog.Namespace) (*collectionMeta, error) {
	v := tx.Bucket(collectionsBucket).Get([]byte(ns))
	if v == nil {
		return nil, nil
	}
	return decodeMeta(v)
}

func putMeta(tx *bolt.Tx, m *collectionMeta) error {
	v, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	if err := tx.Bucket(collectionsBucket).Put([]byte(m.NS), v); err != nil {
		return err
	}
	return tx.Bucket(uuidsBucket).Put(m.UUID.Data, []byte(m.NS))
}

// resolve finds the collection an entry writes to, by UUID when the entry
// carries one.
func resolve(tx *bolt.Tx, e *oplog.Entry) (*collectionMeta, error) {
	ns := e.NS
	if e.UUID != nil {
		v := tx.Bucket(uuidsBucket).Get(e.UUID[:])
		if v == nil {
			return nil, fmt.Errorf("%w: no collection with uuid %s", errors.ErrNamespaceNotFound, e.UUID)
		}
		ns = oplog.Namespace(v)
	}
	m, err := getMeta(tx, ns)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrNamespaceNotFound, ns)
	}
	return m, nil
}

// idKey encodes an _id as its BSON type byte followed by its value bytes.
func idKey(v bson.RawValue) []byte {
	k := make([]byte, 0, 1+len(v.Value))
	k = append(k, byte(v.Type))
	return append(k, v.Value...)
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func documentID(doc bson.Raw) (bson.RawValue, error) {
	v, err := doc.LookupErr("_id")
	if err != nil {
		return bson.RawValue{}, fmt.Errorf("%w: document has no _id", errors.ErrBadOplogEntry)
	}
	return v, nil
}
