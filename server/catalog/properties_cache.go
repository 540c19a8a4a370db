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
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/collate"

	"go.etcd.io/oplogapply/server/oplog"
)

// CollectionProperties is the per-namespace metadata writer assignment needs.
type CollectionProperties struct {
	IsCapped    bool
	IsClustered bool
	// Collator is nil for the simple collation.
	Collator *collate.Collator
}

// PropertiesCache memoizes CollectionProperties for one partitioning pass.
// It is not safe for concurrent use until Freeze has been called, after
// which it never changes and may be shared.
type PropertiesCache struct {
	catalog Catalog
	cache   map[oplog.Namespace]CollectionProperties
	uuids   map[uuid.UUID]oplog.Namespace
	frozen  bool
}

func NewPropertiesCache(c Catalog) *PropertiesCache {
	return &PropertiesCache{
		catalog: c,
		cache:   make(map[oplog.Namespace]CollectionProperties),
		uuids:   make(map[uuid.UUID]oplog.Namespace),
	}
}

// ResolveNamespace returns the namespace op applies to. An entry carrying a
// collection UUID is resolved through the catalog, so a stale or missing
// ns does not matter. When the UUID is unknown the entry's own ns is used,
// or the UUID's string form if the entry has none.
func (c *PropertiesCache) ResolveNamespace(op *oplog.Entry) (oplog.Namespace, error) {
	if op.UUID == nil {
		return op.NS, nil
	}
	if ns, ok := c.uuids[*op.UUID]; ok {
		return ns, nil
	}

	ns, ok, err := c.catalog.NamespaceOf(*op.UUID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve collection %s: %w", op.UUID, err)
	}
	if !ok {
		ns = op.NS
		if ns == "" {
			ns = oplog.Namespace(op.UUID.String())
		}
	}
	if !c.frozen {
		c.uuids[*op.UUID] = ns
	}
	return ns, nil
}

// GetCollectionProperties returns the cached properties of ns, consulting
// the catalog on a miss. A namespace that does not resolve yields the zero
// properties, which are cached as well.
func (c *PropertiesCache) GetCollectionProperties(ns oplog.Namespace) (CollectionProperties, error) {
	if p, ok := c.cache[ns]; ok {
		return p, nil
	}

	var p CollectionProperties
	info, err := c.catalog.LookupCollection(ns)
	if err != nil {
		return CollectionProperties{}, fmt.Errorf("failed to look up collection %q: %w", ns, err)
	}
	if info != nil {
		p.IsCapped = info.Capped
		p.IsClustered = info.Clustered
		p.Collator = info.Collation.NewCollator()
	}
	if !c.frozen {
		c.cache[ns] = p
	}
	return p, nil
}

// Freeze stops the cache from recording new entries.
func (c *PropertiesCache) Freeze() { c.frozen = true }

func (c *PropertiesCache) Frozen() bool { return c.frozen }

func (c *PropertiesCache) Len() int { return len(c.cache) }
