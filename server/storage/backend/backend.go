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

// Package backend stores replicated collections in a bbolt file.
package backend

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/oplog"
)

var (
	databasesBucket   = []byte("databases")
	collectionsBucket = []byte("collections")
	uuidsBucket       = []byte("uuids")
	preparedBucket    = []byte("prepared")

	metaBuckets = [][]byte{databasesBucket, collectionsBucket, uuidsBucket, preparedBucket}

	defaultOpenTimeout = 10 * time.Second
)

type Config struct {
	Path   string
	Logger *zap.Logger
	// OpenTimeout bounds the wait for the file lock.
	OpenTimeout time.Duration
	// NoSync skips fsync on commit. Only for tests and throwaway replays.
	NoSync bool
}

type Backend struct {
	lg *zap.Logger
	db *bolt.DB

	// validationOff counts the outstanding DisableDocumentValidation calls.
	validationOff atomic.Int32

	closeOnce sync.Once
}

func Open(cfg Config) (*Backend, error) {
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: timeout, NoSync: cfg.NoSync})
	if err != nil {
		lg.Warn("failed to open database", zap.String("path", cfg.Path), zap.Error(err))
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range metaBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	lg.Info("opened backend", zap.String("path", cfg.Path), zap.Bool("no-sync", cfg.NoSync))
	return &Backend{lg: lg, db: db}, nil
}

func (b *Backend) Close() (err error) {
	b.closeOnce.Do(func() { err = b.db.Close() })
	return err
}

func (b *Backend) Path() string { return b.db.Path() }

// DisableDocumentValidation turns validation off until every returned
// restore function has been called.
func (b *Backend) DisableDocumentValidation() func() {
	b.validationOff.Add(1)
	var once sync.Once
	return func() { once.Do(func() { b.validationOff.Add(-1) }) }
}

func (b *Backend) validationEnabled() bool { return b.validationOff.Load() == 0 }

// LookupCollection implements catalog.Catalog.
func (b *Backend) LookupCollection(ns oplog.Namespace) (*catalog.CollectionInfo, error) {
	var info *catalog.CollectionInfo
	err := b.db.View(func(tx *bolt.Tx) error {
		m, err := getMeta(tx, ns)
		if err != nil || m == nil {
			return err
		}
		info, err = m.info()
		return err
	})
	return info, err
}

func (b *Backend) ListCollections() ([]catalog.CollectionInfo, error) {
	var out []catalog.CollectionInfo
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(collectionsBucket).ForEach(func(_, v []byte) error {
			m, err := decodeMeta(v)
			if err != nil {
				return err
			}
			info, err := m.info()
			if err != nil {
				return err
			}
			out = append(out, *info)
			return nil
		})
	})
	return out, err
}

// NamespaceOf resolves a collection UUID.
func (b *Backend) NamespaceOf(id uuid.UUID) (oplog.Namespace, bool, error) {
	var ns oplog.Namespace
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(uuidsBucket).Get(id[:])
		if v != nil {
			ns, ok = oplog.Namespace(v), true
		}
		return nil
	})
	return ns, ok, err
}
