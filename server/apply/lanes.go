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
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/writer"
)

// ApplyWriterVectors applies each non-empty writer vector on its own
// goroutine and waits for all of them. A failed lane does not stop the
// others; their errors are combined. The properties cache is frozen first
// because lanes share it.
func (a *Applier) ApplyWriterVectors(ctx context.Context, vectors writer.Vectors, cache *catalog.PropertiesCache, bo BatchOptions) error {
	if cache != nil {
		cache.Freeze()
	}

	errs := make([]error, len(vectors))
	var g errgroup.Group
	for i := range vectors {
		if len(vectors[i]) == 0 {
			continue
		}
		g.Go(func() error {
			if err := a.ApplyOplogBatch(ctx, vectors[i], bo); err != nil {
				errs[i] = fmt.Errorf("writer %d: %w", i, err)
				return errs[i]
			}
			return nil
		})
	}
	// A Group without a context never cancels the remaining lanes, and Wait
	// only reports the first failure.
	if g.Wait() == nil {
		return nil
	}

	err := multierr.Combine(errs...)
	a.lg.Warn(
		"writer vectors failed",
		zap.Int("writers", len(vectors)),
		zap.Int("failed", len(multierr.Errors(err))),
		zap.Error(err),
	)
	return err
}
