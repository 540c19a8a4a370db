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
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// OpType is the "op" field of an oplog entry.
type OpType string

const (
	OpInsert  OpType = "i"
	OpUpdate  OpType = "u"
	OpDelete  OpType = "d"
	OpCommand OpType = "c"
	OpNoop    OpType = "n"
)

func (t OpType) IsCrud() bool {
	return t == OpInsert || t == OpUpdate || t == OpDelete
}

func (t OpType) Valid() bool {
	return t.IsCrud() || t == OpCommand || t == OpNoop
}

// CommandType is the name of the command carried by a command entry.
type CommandType string

const (
	CommandCreate            CommandType = "create"
	CommandDrop              CommandType = "drop"
	CommandDropDatabase      CommandType = "dropDatabase"
	CommandApplyOps          CommandType = "applyOps"
	CommandCommitTransaction CommandType = "commitTransaction"
	CommandAbortTransaction  CommandType = "abortTransaction"
)

type OpTime struct {
	Timestamp bson.Timestamp
	Term      int64
}

func (t OpTime) String() string {
	return fmt.Sprintf("{ts: %d.%d, t: %d}", t.Timestamp.T, t.Timestamp.I, t.Term)
}

// Entry is one replicated write. Entries are owned by the caller; the
// partitioning code only ever flips the capped collection marker.
type Entry struct {
	OpTime  OpTime
	OpType  OpType
	NS      Namespace
	UUID    *uuid.UUID
	Object  bson.Raw
	Object2 bson.Raw

	// SessionID and TxnNumber are set for entries of multi-statement transactions.
	SessionID *uuid.UUID
	TxnNumber *int64

	forCappedCollection bool
}

func (e *Entry) IsCrudOpType() bool { return e.OpType.IsCrud() }

func (e *Entry) IsCommand() bool { return e.OpType == OpCommand }

// CommandType returns the first field name of a command object.
func (e *Entry) CommandType() CommandType {
	if !e.IsCommand() || len(e.Object) == 0 {
		return ""
	}
	elems, err := e.Object.Elements()
	if err != nil || len(elems) == 0 {
		return ""
	}
	return CommandType(elems[0].Key())
}

// IDElement returns the _id of the document the entry writes. Updates carry
// it in o2, inserts and deletes in o. The zero RawValue is returned for
// entries without a document identity.
func (e *Entry) IDElement() bson.RawValue {
	doc := e.Object
	if e.OpType == OpUpdate {
		doc = e.Object2
	}
	if len(doc) == 0 {
		return bson.RawValue{}
	}
	v, err := doc.LookupErr("_id")
	if err != nil {
		return bson.RawValue{}
	}
	return v
}

// IsForCappedCollection reports whether the entry was marked as an insert
// into a capped collection while it was assigned to a writer.
func (e *Entry) IsForCappedCollection() bool { return e.forCappedCollection }

func (e *Entry) SetIsForCappedCollection(v bool) { e.forCappedCollection = v }

func (e *Entry) InTransaction() bool { return e.SessionID != nil && e.TxnNumber != nil }

// IsPreparedTransaction reports whether the entry is the applyOps entry of a
// prepared transaction.
func (e *Entry) IsPreparedTransaction() bool {
	if e.CommandType() != CommandApplyOps {
		return false
	}
	v, err := e.Object.LookupErr("prepare")
	if err != nil {
		return false
	}
	b, ok := v.BooleanOK()
	return ok && b
}

// Size approximates the number of bytes the entry carries.
func (e *Entry) Size() int { return len(e.Object) + len(e.Object2) }

func (e *Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "{op: %q, ns: %q, optime: %s", e.OpType, e.NS, e.OpTime)
	if e.UUID != nil {
		fmt.Fprintf(&sb, ", ui: %s", e.UUID)
	}
	if id := e.IDElement(); id.Type != 0 {
		fmt.Fprintf(&sb, ", _id: %s", id)
	}
	if e.IsCommand() {
		fmt.Fprintf(&sb, ", cmd: %q", e.CommandType())
	}
	if e.InTransaction() {
		fmt.Fprintf(&sb, ", lsid: %s, txnNumber: %d", e.SessionID, *e.TxnNumber)
	}
	sb.WriteString("}")
	return sb.String()
}
