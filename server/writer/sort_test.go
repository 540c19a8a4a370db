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
	"testing"

	"github.com/stretchr/testify/assert"

	"go.etcd.io/oplogapply/server/oplog"
)

func TestStableSortByNamespace(t *testing.T) {
	cmdB := commandOp(t, "b", oplog.CommandDrop, "x")
	opA1 := insertOp(t, "a.c", 1)
	opA2 := insertOp(t, "a.c", 2)
	cmdA := commandOp(t, "a", oplog.CommandDrop, "y")

	ops := []oplog.ApplierOperation{
		oplog.NewApplierOperation(cmdB),
		oplog.NewApplierOperation(opA1),
		oplog.NewApplierOperation(opA2),
		oplog.NewApplierOperation(cmdA),
	}
	StableSortByNamespace(ops)

	assert.Equal(t, []*oplog.Entry{cmdA, cmdB, opA1, opA2}, entriesOf(ops))
}

func TestStableSortKeepsNamespaceOrder(t *testing.T) {
	var ops []oplog.ApplierOperation
	var wantA, wantB []*oplog.Entry
	for i := 0; i < 10; i++ {
		a := insertOp(t, "test.a", i)
		b := updateOp(t, "test.b", i)
		ops = append(ops, oplog.NewApplierOperation(b), oplog.NewApplierOperation(a))
		wantA = append(wantA, a)
		wantB = append(wantB, b)
	}
	StableSortByNamespace(ops)

	assert.Equal(t, append(wantA, wantB...), entriesOf(ops))
}
