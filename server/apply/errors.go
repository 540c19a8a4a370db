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

package apply

import (
	"fmt"

	"go.etcd.io/oplogapply/server/oplog"
)

// ApplyError is returned by a writer batch that stopped on an operation.
type ApplyError struct {
	NS     oplog.Namespace
	OpTime oplog.OpTime
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply operation on %s at %s: %v", e.NS, e.OpTime, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
