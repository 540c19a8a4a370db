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
	"sort"

	"go.etcd.io/oplogapply/server/oplog"
)

// StableSortByNamespace orders commands before data operations and groups
// each class by namespace. The sort is stable, so entries on the same
// namespace keep their oplog order.
func StableSortByNamespace(ops []oplog.ApplierOperation) {
	sort.SliceStable(ops, func(i, j int) bool {
		l, r := ops[i].Entry, ops[j].Entry
		if isCommand(l) {
			if isCommand(r) {
				return l.NS < r.NS
			}
			return true
		}
		if isCommand(r) {
			return false
		}
		return l.NS < r.NS
	})
}

func isCommand(e *oplog.Entry) bool { return e.IsCommand() || e.NS.IsCommand() }
