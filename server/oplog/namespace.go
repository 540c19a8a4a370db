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

import "strings"

const commandCollection = "$cmd"

// Namespace is a "<db>.<collection>" pair. Command entries target "<db>.$cmd".
type Namespace string

func NewNamespace(db, coll string) Namespace {
	return Namespace(db + "." + coll)
}

// DB returns the database part of the namespace.
func (ns Namespace) DB() string {
	if i := strings.IndexByte(string(ns), '.'); i >= 0 {
		return string(ns[:i])
	}
	return string(ns)
}

// Coll returns the collection part of the namespace, or "" when there is none.
func (ns Namespace) Coll() string {
	if i := strings.IndexByte(string(ns), '.'); i >= 0 {
		return string(ns[i+1:])
	}
	return ""
}

func (ns Namespace) IsCommand() bool { return ns.Coll() == commandCollection }

func (ns Namespace) String() string { return string(ns) }
