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

package oplog

import (
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"go.etcd.io/oplogapply/server/errors"
)

const binarySubtypeUUID byte = 0x04

type wireSession struct {
	ID bson.Binary `bson:"id"`
}

type wireEntry struct {
	Timestamp bson.Timestamp `bson:"ts"`
	Term      int64          `bson:"t,omitempty"`
	Op        string         `bson:"op"`
	NS        string         `bson:"ns"`
	UI        *bson.Binary   `bson:"ui,omitempty"`
	O         bson.Raw       `bson:"o,omitempty"`
	O2        bson.Raw       `bson:"o2,omitempty"`
	LSID      *wireSession   `bson:"lsid,omitempty"`
	TxnNumber *int64         `bson:"txnNumber,omitempty"`
}

// Parse decodes an oplog entry document.
func Parse(raw bson.Raw) (*Entry, error) {
	var w wireEntry
	if err := bson.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrBadOplogEntry, err)
	}
	e := &Entry{
		OpTime:    OpTime{Timestamp: w.Timestamp, Term: w.Term},
		OpType:    OpType(w.Op),
		NS:        Namespace(w.NS),
		Object:    w.O,
		Object2:   w.O2,
		TxnNumber: w.TxnNumber,
	}
	if !e.OpType.Valid() {
		return nil, fmt.Errorf("%w: unknown op type %q", errors.ErrBadOplogEntry, w.Op)
	}
	if w.UI != nil {
		id, err := binaryToUUID(*w.UI)
		if err != nil {
			return nil, err
		}
		e.UUID = &id
	}
	if w.LSID != nil {
		id, err := binaryToUUID(w.LSID.ID)
		if err != nil {
			return nil, err
		}
		e.SessionID = &id
	}
	if e.OpType == OpUpdate && len(e.Object2) == 0 {
		return nil, fmt.Errorf("%w: update without o2", errors.ErrBadOplogEntry)
	}
	return e, nil
}

// Marshal encodes the entry in the format Parse reads.
func (e *Entry) Marshal() (bson.Raw, error) {
	w := wireEntry{
		Timestamp: e.OpTime.Timestamp,
		Term:      e.OpTime.Term,
		Op:        string(e.OpType),
		NS:        string(e.NS),
		O:         e.Object,
		O2:        e.Object2,
		TxnNumber: e.TxnNumber,
	}
	if e.UUID != nil {
		ui := UUIDToBinary(*e.UUID)
		w.UI = &ui
	}
	if e.SessionID != nil {
		w.LSID = &wireSession{ID: UUIDToBinary(*e.SessionID)}
	}
	return bson.Marshal(w)
}

// ParseExtJSON decodes one relaxed or canonical extended JSON oplog entry.
func ParseExtJSON(b []byte) (*Entry, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(b, false, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrBadOplogEntry, err)
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrBadOplogEntry, err)
	}
	return Parse(raw)
}

// ExtractOperations expands an applyOps entry into its inner operations.
// Inner operations inherit the optime and session identity of the outer
// entry.
func ExtractOperations(e *Entry) ([]*Entry, error) {
	if e.CommandType() != CommandApplyOps {
		return nil, fmt.Errorf("%w: %s is not an applyOps entry", errors.ErrBadOplogEntry, e)
	}
	v, err := e.Object.LookupErr(string(CommandApplyOps))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrBadOplogEntry, err)
	}
	arr, ok := v.ArrayOK()
	if !ok {
		return nil, fmt.Errorf("%w: applyOps is not an array", errors.ErrBadOplogEntry)
	}
	vals, err := arr.Values()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrBadOplogEntry, err)
	}
	ops := make([]*Entry, 0, len(vals))
	for _, val := range vals {
		doc, ok := val.DocumentOK()
		if !ok {
			return nil, fmt.Errorf("%w: applyOps element is not a document", errors.ErrBadOplogEntry)
		}
		op, err := Parse(doc)
		if err != nil {
			return nil, err
		}
		op.OpTime = e.OpTime
		op.SessionID = e.SessionID
		op.TxnNumber = e.TxnNumber
		ops = append(ops, op)
	}
	return ops, nil
}

func binaryToUUID(b bson.Binary) (uuid.UUID, error) {
	if b.Subtype != binarySubtypeUUID {
		return uuid.Nil, fmt.Errorf("%w: binary subtype %#x is not a UUID", errors.ErrBadOplogEntry, b.Subtype)
	}
	id, err := uuid.FromBytes(b.Data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errors.ErrBadOplogEntry, err)
	}
	return id, nil
}

// UUIDToBinary encodes a UUID the way oplog entries carry it.
func UUIDToBinary(id uuid.UUID) bson.Binary {
	return bson.Binary{Subtype: binarySubtypeUUID, Data: id[:]}
}
