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
	"fmt"
	"sync"

	"github.com/google/uuid"

	"go.etcd.io/oplogapply/server/errors"
)

type splitEntry struct {
	txnNumber int64
	sessions  []SplitSession
}

// SplitPrepareSessionManager tracks top-level sessions of prepared
// transactions and the split sessions acquired for them.
type SplitPrepareSessionManager struct {
	mu     sync.Mutex
	pool   *Pool
	splits map[uuid.UUID]splitEntry
}

func NewSplitPrepareSessionManager(pool *Pool) *SplitPrepareSessionManager {
	if pool == nil {
		pool = NewPool()
	}
	return &SplitPrepareSessionManager{pool: pool, splits: make(map[uuid.UUID]splitEntry)}
}

// SplitSession acquires numSplits sessions from the pool and associates them
// with the given top-level session. A session can only be split once.
func (m *SplitPrepareSessionManager) SplitSession(sessionID uuid.UUID, txnNumber int64, numSplits uint32) ([]SplitSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.splits[sessionID]; ok {
		return nil, fmt.Errorf("%w: lsid %s", errors.ErrSessionAlreadySplit, sessionID)
	}
	sessions := make([]SplitSession, 0, numSplits)
	for i := uint32(0); i < numSplits; i++ {
		sessions = append(sessions, m.pool.Acquire())
	}
	m.splits[sessionID] = splitEntry{txnNumber: txnNumber, sessions: sessions}
	return copySessions(sessions), nil
}

// GetSplitSessions returns the split sessions of the given top-level
// session, or false when it has not been split at txnNumber.
func (m *SplitPrepareSessionManager) GetSplitSessions(sessionID uuid.UUID, txnNumber int64) ([]SplitSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.splits[sessionID]
	if !ok || e.txnNumber != txnNumber {
		return nil, false
	}
	return copySessions(e.sessions), true
}

func (m *SplitPrepareSessionManager) IsSessionSplit(sessionID uuid.UUID, txnNumber int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.splits[sessionID]
	return ok && e.txnNumber == txnNumber
}

// ReleaseSplitSessions returns the split sessions to the pool and stops
// tracking the top-level session.
func (m *SplitPrepareSessionManager) ReleaseSplitSessions(sessionID uuid.UUID, txnNumber int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.splits[sessionID]
	if !ok || e.txnNumber != txnNumber {
		return fmt.Errorf("%w: lsid %s txnNumber %d", errors.ErrSessionNotSplit, sessionID, txnNumber)
	}
	for _, s := range e.sessions {
		m.pool.Release(s)
	}
	delete(m.splits, sessionID)
	return nil
}

func copySessions(s []SplitSession) []SplitSession {
	out := make([]SplitSession, len(s))
	copy(out, s)
	return out
}
