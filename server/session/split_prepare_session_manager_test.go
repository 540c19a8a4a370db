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

package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.etcd.io/oplogapply/server/errors"
)

func TestSplitSessionLifecycle(t *testing.T) {
	pool := NewPool()
	m := NewSplitPrepareSessionManager(pool)
	lsid := uuid.New()

	assert.False(t, m.IsSessionSplit(lsid, 5))

	sessions, err := m.SplitSession(lsid, 5, 3)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	seen := make(map[uuid.UUID]bool)
	for _, s := range sessions {
		assert.False(t, s.IsZero())
		assert.False(t, seen[s.ID], "split sessions must be distinct")
		seen[s.ID] = true
	}

	assert.True(t, m.IsSessionSplit(lsid, 5))
	assert.False(t, m.IsSessionSplit(lsid, 6))

	got, ok := m.GetSplitSessions(lsid, 5)
	require.True(t, ok)
	assert.Equal(t, sessions, got)

	_, err = m.SplitSession(lsid, 5, 1)
	assert.ErrorIs(t, err, errors.ErrSessionAlreadySplit)

	require.NoError(t, m.ReleaseSplitSessions(lsid, 5))
	assert.False(t, m.IsSessionSplit(lsid, 5))
	assert.Equal(t, 3, pool.Len())

	assert.ErrorIs(t, m.ReleaseSplitSessions(lsid, 5), errors.ErrSessionNotSplit)
}

func TestSplitSessionsAreCopies(t *testing.T) {
	m := NewSplitPrepareSessionManager(nil)
	lsid := uuid.New()

	sessions, err := m.SplitSession(lsid, 1, 1)
	require.NoError(t, err)
	sessions[0] = SplitSession{}

	got, ok := m.GetSplitSessions(lsid, 1)
	require.True(t, ok)
	assert.False(t, got[0].IsZero())
}

func TestPoolReuseAdvancesTxnNumber(t *testing.T) {
	pool := NewPool()
	s := pool.Acquire()
	pool.Release(s)

	reused := pool.Acquire()
	assert.Equal(t, s.ID, reused.ID)
	assert.Equal(t, s.TxnNumber+1, reused.TxnNumber)
	assert.Equal(t, 0, pool.Len())
}
