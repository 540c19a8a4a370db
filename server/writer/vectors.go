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

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
	"go.etcd.io/oplogapply/server/session"
)

// SplitSessionManager hands out the split sessions of prepared transactions.
type SplitSessionManager interface {
	// SplitSession returns exactly numSplits distinct sessions for the given
	// top-level session.
	SplitSession(sessionID uuid.UUID, txnNumber int64, numSplits uint32) ([]session.SplitSession, error)
	// ReleaseSplitSessions takes back the split sessions of a transaction.
	ReleaseSplitSessions(sessionID uuid.UUID, txnNumber int64) error
}

// Vectors holds one writer vector per writer.
type Vectors [][]oplog.ApplierOperation

func NewVectors(numWriters int) Vectors {
	if numWriters <= 0 {
		panic("writer: number of writers must be positive")
	}
	return make(Vectors, numWriters)
}

func (v Vectors) NumWriters() uint32 { return uint32(len(v)) }

// Len returns the number of operations across all writers.
func (v Vectors) Len() int {
	n := 0
	for _, w := range v {
		n += len(w)
	}
	return n
}

// Reset empties every writer vector, keeping their capacity.
func (v Vectors) Reset() {
	for i := range v {
		v[i] = v[i][:0]
	}
}

func appendOp[T any](w *[]T, op T) {
	if len(*w) == 0 && cap(*w) == 0 {
		// Skip a few growth rounds.
		*w = make([]T, 0, 8)
	}
	*w = append(*w, op)
}

// AddToWriterVector appends op to the vector of the writer it hashes to (or
// forceWriterID) and returns that writer.
func AddToWriterVector(op *oplog.Entry, vectors Vectors, cache *catalog.PropertiesCache, forceWriterID *uint32) (uint32, error) {
	id, err := WriterID(op, cache, vectors.NumWriters(), forceWriterID)
	if err != nil {
		return 0, err
	}
	appendOp(&vectors[id], oplog.NewApplierOperation(op))
	return id, nil
}

// AddDerivedOps adds operations derived from a single entry. With serial
// set, every operation follows the first one onto its writer so that the
// chain applies in order.
func AddDerivedOps(ops []*oplog.Entry, vectors Vectors, cache *catalog.PropertiesCache, serial bool) error {
	var serialWriterID *uint32
	for _, op := range ops {
		id, err := AddToWriterVector(op, vectors, cache, serialWriterID)
		if err != nil {
			return err
		}
		if serial && serialWriterID == nil {
			serialWriterID = &id
		}
	}
	return nil
}

// AddDerivedPrepares splits the operations of a prepared transaction across
// the writers they hash to. Every writer that received operations gets one
// ApplySplitPrepareOps unit with its own split session. A transaction
// without operations still acquires one split session.
func AddDerivedPrepares(
	prepareOp *oplog.Entry,
	derivedOps []*oplog.Entry,
	vectors Vectors,
	cache *catalog.PropertiesCache,
	sessions SplitSessionManager,
) error {
	if !prepareOp.InTransaction() {
		return fmt.Errorf("%w: prepare without session: %s", errors.ErrBadOplogEntry, prepareOp)
	}
	numWriters := vectors.NumWriters()

	var bufSplits uint32
	bufWriterVectors := make([][]*oplog.Entry, numWriters)
	for _, op := range derivedOps {
		id, err := WriterID(op, cache, numWriters, nil)
		if err != nil {
			return err
		}
		appendOp(&bufWriterVectors[id], op)
		if len(bufWriterVectors[id]) == 1 {
			bufSplits++
		}
	}

	realSplits := bufSplits
	if realSplits == 0 {
		realSplits = 1
	}
	splitSessions, err := sessions.SplitSession(*prepareOp.SessionID, *prepareOp.TxnNumber, realSplits)
	if err != nil {
		return err
	}
	release := func(err error) error {
		return multierr.Append(err, sessions.ReleaseSplitSessions(*prepareOp.SessionID, *prepareOp.TxnNumber))
	}
	if uint32(len(splitSessions)) != realSplits {
		return release(fmt.Errorf("%w: requested %d split sessions for %s, got %d",
			errors.ErrSplitSessionCount, realSplits, prepareOp, len(splitSessions)))
	}

	// Empty (read-only) prepares go to the writer of the prepare entry's
	// own namespace.
	if bufSplits == 0 {
		id, err := WriterID(prepareOp, cache, numWriters, nil)
		if err != nil {
			return release(err)
		}
		appendOp(&vectors[id], oplog.NewSplitPrepareOperation(prepareOp, splitSessions[0], []*oplog.Entry{}))
		return nil
	}

	j := 0
	for i, buf := range bufWriterVectors {
		if len(buf) == 0 {
			continue
		}
		appendOp(&vectors[i], oplog.NewSplitPrepareOperation(prepareOp, splitSessions[j], buf))
		j++
	}
	return nil
}
