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

// Package failpoint provides runtime pause points for diagnostics and tests.
package failpoint

import (
	"context"
	"sync"
)

// Pause blocks callers whose data matches while it is enabled.
type Pause struct {
	name string

	mu       sync.Mutex
	enabled  bool
	match    string
	released chan struct{}
	hits     int
	waiting  int
}

func NewPause(name string) *Pause {
	return &Pause{name: name}
}

func (p *Pause) Name() string { return p.name }

// Enable makes PauseWhileSet block for data equal to match. An empty match
// pauses every caller.
func (p *Pause) Enable(match string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.match = match
	if !p.enabled {
		p.enabled = true
		p.released = make(chan struct{})
	}
}

// Disable releases every paused caller.
func (p *Pause) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	p.enabled = false
	close(p.released)
}

func (p *Pause) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Hits returns how many callers have been paused so far.
func (p *Pause) Hits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits
}

// Waiting returns the number of callers currently paused.
func (p *Pause) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting
}

// PauseWhileSet blocks until the pause is disabled or ctx is done. It
// reports whether the caller was paused.
func (p *Pause) PauseWhileSet(ctx context.Context, data string) bool {
	p.mu.Lock()
	if !p.enabled || (p.match != "" && p.match != data) {
		p.mu.Unlock()
		return false
	}
	p.hits++
	p.waiting++
	released := p.released
	p.mu.Unlock()

	select {
	case <-released:
	case <-ctx.Done():
	}

	p.mu.Lock()
	p.waiting--
	p.mu.Unlock()
	return true
}
