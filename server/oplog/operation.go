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

import "go.etcd.io/oplogapply/server/session"

// ApplicationInstruction tells the applier how to treat an ApplierOperation.
type ApplicationInstruction int

const (
	// ApplyOplogEntry applies the entry itself.
	ApplyOplogEntry ApplicationInstruction = iota
	// ApplySplitPrepareOps applies SubOps as this writer's share of a
	// prepared transaction under SplitSession.
	ApplySplitPrepareOps
)

func (i ApplicationInstruction) String() string {
	switch i {
	case ApplyOplogEntry:
		return "applyOplogEntry"
	case ApplySplitPrepareOps:
		return "applySplitPrepareOps"
	default:
		return "unknown"
	}
}

// ApplierOperation is the unit stored in a writer vector. SplitSession and
// SubOps are only meaningful when Instruction is ApplySplitPrepareOps.
type ApplierOperation struct {
	Entry        *Entry
	Instruction  ApplicationInstruction
	SplitSession session.SplitSession
	SubOps       []*Entry
}

func NewApplierOperation(e *Entry) ApplierOperation {
	return ApplierOperation{Entry: e, Instruction: ApplyOplogEntry}
}

func NewSplitPrepareOperation(prepare *Entry, s session.SplitSession, ops []*Entry) ApplierOperation {
	return ApplierOperation{
		Entry:        prepare,
		Instruction:  ApplySplitPrepareOps,
		SplitSession: s,
		SubOps:       ops,
	}
}

// IsSplitPrepare reports whether the operation is a prepared transaction share.
func (op ApplierOperation) IsSplitPrepare() bool {
	return op.Instruction == ApplySplitPrepareOps
}
