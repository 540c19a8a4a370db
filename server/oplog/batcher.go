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

// BatchLimits bound a batch of entries handed to the applier. Zero values
// are unbounded.
type BatchLimits struct {
	MaxOps   int
	MaxBytes int
}

// mustProcessIndividually reports whether e needs a batch of its own.
// Commands change the catalog, and prepared transactions must be staged
// before anything that commits them.
func mustProcessIndividually(e *Entry) bool {
	if !e.IsCommand() {
		return false
	}
	return !(e.CommandType() == CommandApplyOps && e.InTransaction() && !e.IsPreparedTransaction())
}

// Batches splits entries into consecutive batches. Order is preserved.
func Batches(entries []*Entry, limits BatchLimits) [][]*Entry {
	var (
		out   [][]*Entry
		cur   []*Entry
		bytes int
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
			cur, bytes = nil, 0
		}
	}
	for _, e := range entries {
		if mustProcessIndividually(e) {
			flush()
			out = append(out, []*Entry{e})
			continue
		}
		if (limits.MaxOps > 0 && len(cur) >= limits.MaxOps) ||
			(limits.MaxBytes > 0 && len(cur) > 0 && bytes+e.Size() > limits.MaxBytes) {
			flush()
		}
		cur = append(cur, e)
		bytes += e.Size()
	}
	flush()
	return out
}
