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

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"go.etcd.io/oplogapply/server/errors"
	"go.etcd.io/oplogapply/server/oplog"
)

// WriteConflictPolicy bounds the write conflict retry loop.
type WriteConflictPolicy struct {
	// MaxAttempts is the number of attempts before giving up, 0 retries forever.
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Clock       clockwork.Clock
}

// DefaultBackoff retries immediately a few times before sleeping for
// progressively longer.
func DefaultBackoff(attempt int) time.Duration {
	switch {
	case attempt < 4:
		return 0
	case attempt < 10:
		return time.Millisecond
	case attempt < 100:
		return 5 * time.Millisecond
	default:
		return 10 * time.Millisecond
	}
}

func (p WriteConflictPolicy) withDefaults() WriteConflictPolicy {
	if p.Backoff == nil {
		p.Backoff = DefaultBackoff
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	return p
}

// writeConflictRetry runs f until it returns anything but a write conflict.
func writeConflictRetry(ctx context.Context, lg *zap.Logger, p WriteConflictPolicy, opStr string, ns oplog.Namespace, f func() error) error {
	for attempt := 0; ; attempt++ {
		err := f()
		if !errors.IsWriteConflict(err) {
			return err
		}
		writeConflictsTotal.WithLabelValues(opStr).Inc()
		if p.MaxAttempts > 0 && attempt+1 >= p.MaxAttempts {
			return fmt.Errorf("%w: %s on %s after %d attempts: %v",
				errors.ErrWriteConflictRetriesExhausted, opStr, ns, attempt+1, err)
		}

		fields := []zap.Field{zap.String("operation", opStr), zap.Stringer("namespace", ns), zap.Int("attempt", attempt)}
		if attempt > 0 && attempt%100 == 0 {
			lg.Warn("repeated write conflicts", fields...)
		} else {
			lg.Debug("write conflict, retrying", fields...)
		}
		if d := p.Backoff(attempt); d > 0 {
			p.Clock.Sleep(d)
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
}
