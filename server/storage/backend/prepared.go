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
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
	"go.etcd.io/oplogapply/server/session"
)

// preparedRecord is one writer's share of a prepared transaction, staged
// until the transaction commits or aborts.
type preparedRecord struct {
	LSID      bson.Binary    `bson:"lsid"`
	TxnNumber int64          `bson:"txnNumber"`
	PrepareTS bson.Timestamp `bson:"prepareTimestamp"`
	Ops       []bson.Raw     `bson:"ops"`
}

func preparedKey(s session.SplitSession) []byte {
	k := make([]byte, 0, 24)
	k = append(k, s.ID[:]...)
	return binary.BigEndian.AppendUint64(k, uint64(s.TxnNumber))
}

// ApplyPreparedOps implements apply.Storage. The share is checked against
// the catalog and staged in one transaction; it becomes visible when the
// commitTransaction entry is applied.
func (b *Backend) ApplyPreparedOps(ctx context.Context, op oplog.ApplierOperation, _ oplog.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepare := op.Entry
	if !op.IsSplitPrepare() || !prepare.InTransaction() {
		return fmt.Errorf("%w: %s is not a prepared transaction share", errors.ErrBadOplogEntry, prepare)
	}
	rec := preparedRecord{
		LSID:      oplog.UUIDToBinary(*prepare.SessionID),
		TxnNumber: *prepare.TxnNumber,
		PrepareTS: prepare.OpTime.Timestamp,
		Ops:       make([]bson.Raw, 0, len(op.SubOps)),
	}
	for _, sub := range op.SubOps {
		raw, err := sub.Marshal()
		if err != nil {
			return err
		}
		rec.Ops = append(rec.Ops, raw)
	}
	v, err := bson.Marshal(rec)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		for _, sub := range op.SubOps {
			if _, err := resolve(tx, sub); err != nil {
				return err
			}
		}
		return tx.Bucket(preparedBucket).Put(preparedKey(op.SplitSession), v)
	})
}

type stagedShare struct {
	key []byte
	rec preparedRecord
}

func findPrepared(tx *bolt.Tx, e *oplog.Entry) ([]stagedShare, error) {
	if !e.InTransaction() {
		return nil, fmt.Errorf("%w: %s has no session", errors.ErrBadOplogEntry, e)
	}
	lsid := oplog.UUIDToBinary(*e.SessionID)
	var out []stagedShare
	err := tx.Bucket(preparedBucket).ForEach(func(k, v []byte) error {
		var rec preparedRecord
		if err := bson.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("corrupt prepared record: %w", err)
		}
		if rec.TxnNumber == *e.TxnNumber && bytes.Equal(rec.LSID.Data, lsid.Data) {
			out = append(out, stagedShare{key: append([]byte(nil), k...), rec: rec})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no prepared transaction for lsid %s txnNumber %d",
			errors.ErrBadOplogEntry, e.SessionID, *e.TxnNumber)
	}
	return out, nil
}

// commitPrepared applies every staged share of the transaction at once.
func (b *Backend) commitPrepared(e *oplog.Entry) error {
	applied := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		shares, err := findPrepared(tx, e)
		if err != nil {
			return err
		}
		for _, s := range shares {
			for _, raw := range s.rec.Ops {
				op, err := oplog.Parse(raw)
				if err != nil {
					return err
				}
				m, err := resolve(tx, op)
				if err != nil {
					return err
				}
				c, err := openCollection(tx, m)
				if err != nil {
					return err
				}
				if err := b.applyCrudOp(c, op, false); err != nil {
					return err
				}
				applied++
			}
			if err := tx.Bucket(preparedBucket).Delete(s.key); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lg.Debug("committed prepared transaction", zap.Stringer("lsid", e.SessionID), zap.Int("operations", applied))
	}
	return err
}

func (b *Backend) abortPrepared(e *oplog.Entry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		shares, err := findPrepared(tx, e)
		if err != nil {
			return err
		}
		for _, s := range shares {
			if err := tx.Bucket(preparedBucket).Delete(s.key); err != nil {
				return err
			}
		}
		return nil
	})
}
