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
	"sync"

	"github.com/google/uuid"
)

// SplitSession is an internal session that carries one writer's share of a
// prepared transaction. It is handed out by value.
type SplitSession struct {
	ID        uuid.UUID
	TxnNumber int64
}

func (s SplitSession) IsZero() bool { return s.ID == uuid.Nil }

// Pool stores internal sessions for reuse. Every acquisition of a pooled
// session advances its transaction number so that a reused session never
// repeats a (session, txnNumber) pair.
type Pool struct {
	mu   sync.Mutex
	free []SplitSession
}

func NewPool() *Pool { return &Pool{} }

func (p *Pool) Acquire() SplitSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		s.TxnNumber++
		return s
	}
	return SplitSession{ID: uuid.New()}
}

func (p *Pool) Release(s SplitSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, s)
}

// Len returns the number of idle sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
