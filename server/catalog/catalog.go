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

package catalog

import (
	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"go.etcd.io/oplogapply/server/oplog"
)

const simpleLocale = "simple"

// Collation is the default collation of a collection.
type Collation struct {
	Locale          string `bson:"locale"`
	Strength        int    `bson:"strength,omitempty"`
	NumericOrdering bool   `bson:"numericOrdering,omitempty"`
}

// IsSimple reports whether strings compare by their binary value.
func (c *Collation) IsSimple() bool {
	return c == nil || c.Locale == "" || c.Locale == simpleLocale
}

// NewCollator builds a collator for c, or nil for the simple collation. A
// Collator is not safe for concurrent use.
func (c *Collation) NewCollator() *collate.Collator {
	if c.IsSimple() {
		return nil
	}
	var opts []collate.Option
	switch c.Strength {
	case 1:
		opts = append(opts, collate.IgnoreCase, collate.IgnoreDiacritics)
	case 2:
		opts = append(opts, collate.IgnoreCase)
	}
	if c.NumericOrdering {
		opts = append(opts, collate.Numeric)
	}
	return collate.New(language.Make(c.Locale), opts...)
}

// CollectionInfo is what the catalog knows about one collection.
type CollectionInfo struct {
	NS        oplog.Namespace
	UUID      uuid.UUID
	Capped    bool
	Clustered bool
	Collation *Collation
}

// Catalog resolves namespaces against the current catalog state.
type Catalog interface {
	// LookupCollection returns nil, nil when ns does not resolve to a
	// collection.
	LookupCollection(ns oplog.Namespace) (*CollectionInfo, error)
	// NamespaceOf returns the current namespace of the collection with the
	// given UUID, and false when no such collection exists.
	NamespaceOf(id uuid.UUID) (oplog.Namespace, bool, error)
}
