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
	"fmt"

	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/oplog"
)

// FillWriterVectors partitions a batch of oplog entries into vectors.
// Prepared transactions are split across writers, operations of committed
// unprepared transactions are expanded and hashed individually, and every
// other entry is assigned by its own hash.
func FillWriterVectors(
	lg *zap.Logger,
	ops []*oplog.Entry,
	vectors Vectors,
	cache *catalog.PropertiesCache,
	sessions SplitSessionManager,
) error {
	if lg == nil {
		lg = zap.NewNop()
	}
	for _, op := range ops {
		switch {
		case op.IsPreparedTransaction():
			derived, err := oplog.ExtractOperations(op)
			if err != nil {
				return err
			}
			if err := AddDerivedPrepares(op, derived, vectors, cache, sessions); err != nil {
				return fmt.Errorf("failed to split prepared transaction %s: %w", op, err)
			}
			lg.Debug(
				"split prepared transaction",
				zap.Stringer("lsid", op.SessionID),
				zap.Int64("txn-number", *op.TxnNumber),
				zap.Int("operations", len(derived)),
			)
		case op.CommandType() == oplog.CommandApplyOps && op.InTransaction():
			derived, err := oplog.ExtractOperations(op)
			if err != nil {
				return err
			}
			if err := AddDerivedOps(derived, vectors, cache, false); err != nil {
				return err
			}
		default:
			if _, err := AddToWriterVector(op, vectors, cache, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
