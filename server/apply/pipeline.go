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
	"time"

	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/catalog"
	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
	"go.etcd.io/oplogapply/server/writer"
)

// SessionManager splits prepared transactions and takes the split sessions
// back once the transaction commits or aborts.
type SessionManager = writer.SplitSessionManager

type PipelineOptions struct {
	Logger   *zap.Logger
	Applier  *Applier
	Catalog  catalog.Catalog
	Sessions SessionManager
	Writers  int
	Limits   oplog.BatchLimits
	Batch    BatchOptions
}

// Pipeline batches a slice of the oplog, partitions every batch into writer
// vectors and applies them.
type Pipeline struct {
	lg   *zap.Logger
	opts PipelineOptions
}

type PipelineStats struct {
	Batches int
	Entries int
	// Units is the number of operations placed in writer vectors.
	Units int
	Took  time.Duration
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	if opts.Writers <= 0 {
		lg.Panic("pipeline requires at least one writer", zap.Int("writers", opts.Writers))
	}
	return &Pipeline{lg: lg, opts: opts}
}

// SetBatchOptions changes the options used by subsequent runs.
func (p *Pipeline) SetBatchOptions(bo BatchOptions) { p.opts.Batch = bo }

// Partition fills a fresh set of writer vectors from one batch.
func (p *Pipeline) Partition(batch []*oplog.Entry) (writer.Vectors, *catalog.PropertiesCache, error) {
	vectors := writer.NewVectors(p.opts.Writers)
	cache := catalog.NewPropertiesCache(p.opts.Catalog)
	if err := writer.FillWriterVectors(p.lg, batch, vectors, cache, p.opts.Sessions); err != nil {
		return nil, nil, err
	}
	return vectors, cache, nil
}

func (p *Pipeline) Run(ctx context.Context, entries []*oplog.Entry) (PipelineStats, error) {
	start := time.Now()
	var st PipelineStats
	for _, batch := range oplog.Batches(entries, p.opts.Limits) {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		vectors, cache, err := p.Partition(batch)
		if err != nil {
			p.releaseAbandoned(batch)
			return st, fmt.Errorf("failed to partition batch %d: %w", st.Batches, err)
		}
		if err := p.opts.Applier.ApplyWriterVectors(ctx, vectors, cache, p.opts.Batch); err != nil {
			p.releaseAbandoned(batch)
			return st, err
		}
		p.releaseFinished(batch)

		st.Batches++
		st.Entries += len(batch)
		st.Units += vectors.Len()
	}
	st.Took = time.Since(start)
	p.lg.Info(
		"applied oplog entries",
		zap.Int("batches", st.Batches),
		zap.Int("entries", st.Entries),
		zap.Int("writers", p.opts.Writers),
		zap.Duration("took", st.Took),
	)
	return st, nil
}

// releaseFinished returns the split sessions of transactions the batch
// committed or aborted.
func (p *Pipeline) releaseFinished(batch []*oplog.Entry) {
	if p.opts.Sessions == nil {
		return
	}
	for _, e := range batch {
		switch e.CommandType() {
		case oplog.CommandCommitTransaction, oplog.CommandAbortTransaction:
		default:
			continue
		}
		p.release(e)
	}
}

// releaseAbandoned returns the split sessions of prepared transactions in a
// batch that failed, so that the batch can be partitioned again.
func (p *Pipeline) releaseAbandoned(batch []*oplog.Entry) {
	if p.opts.Sessions == nil {
		return
	}
	for _, e := range batch {
		if e.IsPreparedTransaction() {
			p.release(e)
		}
	}
}

func (p *Pipeline) release(e *oplog.Entry) {
	if !e.InTransaction() {
		return
	}
	err := p.opts.Sessions.ReleaseSplitSessions(*e.SessionID, *e.TxnNumber)
	if err != nil && !errors.IsSessionNotSplit(err) {
		p.lg.Warn("failed to release split sessions", zap.Stringer("lsid", e.SessionID), zap.Error(err))
	}
}
