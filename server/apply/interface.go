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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/oplog"
)

// Storage executes replicated writes against collections.
type Storage interface {
	DatabaseExists(ctx context.Context, db string) (bool, error)
	// NamespaceOf resolves a collection UUID to its current namespace.
	NamespaceOf(id uuid.UUID) (oplog.Namespace, bool, error)
	// ApplyCrud applies a single CRUD entry or a group of inserts into one
	// collection. It reports errors.ErrWriteConflict for retryable conflicts,
	// errors.ErrNamespaceNotFound when the collection does not resolve and
	// errors.ErrUpdateOperationFailed when an update finds no document.
	ApplyCrud(ctx context.Context, ops []*oplog.Entry, opts CrudOptions) error
	// ApplyCommand applies a command entry without creating databases
	// implicitly.
	ApplyCommand(ctx context.Context, op *oplog.Entry, mode oplog.Mode) error
	// ApplyPreparedOps atomically applies one writer's share of a prepared
	// transaction under its split session.
	ApplyPreparedOps(ctx context.Context, op oplog.ApplierOperation, mode oplog.Mode) error
	// DisableDocumentValidation turns off document validation until the
	// returned function is called. Calls nest.
	DisableDocumentValidation() (restore func())
}

type CrudOptions struct {
	// AlwaysUpsert turns updates of missing documents into upserts.
	AlwaysUpsert     bool
	Mode             oplog.Mode
	IsDataConsistent bool
}

// DropHook is a diagnostic pause point consulted after a drop command has
// been applied.
type DropHook interface {
	// PauseWhileSet blocks while the hook is enabled for db and reports
	// whether it paused.
	PauseWhileSet(ctx context.Context, db string) bool
}

// BatchOptions are the per batch parameters chosen by the caller.
type BatchOptions struct {
	Mode                                  oplog.Mode
	AllowNamespaceNotFoundErrorsOnCrudOps bool
	IsDataConsistent                      bool
}

type InsertGroupOptions struct {
	MaxOps   int
	MaxBytes int
}

const (
	DefaultInsertGroupMaxOps   = 64
	DefaultInsertGroupMaxBytes = 256 * 1024

	DefaultWarningApplyDuration = time.Second
)

type ApplierOptions struct {
	Logger  *zap.Logger
	Storage Storage
	// EnforceSteadyStateConstraints makes secondaries fail on missing
	// documents instead of upserting them.
	EnforceSteadyStateConstraints bool
	WriteConflict                 WriteConflictPolicy
	InsertGroup                   InsertGroupOptions
	DropHook                      DropHook
	// OpsApplied, if set, is called with the number of operations applied.
	// Lanes call it concurrently.
	OpsApplied func(n int)
	// WarningApplyDuration is the batch duration above which a warning is logged.
	WarningApplyDuration time.Duration
}
