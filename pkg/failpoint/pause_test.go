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

package failpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseDisabled(t *testing.T) {
	p := NewPause("hang")
	assert.False(t, p.PauseWhileSet(context.Background(), "a"))
	assert.Zero(t, p.Hits())
}

func TestPauseMatch(t *testing.T) {
	p := NewPause("hang")
	p.Enable("a")
	defer p.Disable()

	assert.False(t, p.PauseWhileSet(context.Background(), "b"))

	done := make(chan bool)
	go func() { done <- p.PauseWhileSet(context.Background(), "a") }()

	require.Eventually(t, func() bool { return p.Waiting() == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("caller was not paused")
	default:
	}
	p.Disable()
	assert.True(t, <-done)
	assert.Equal(t, 1, p.Hits())
	assert.Zero(t, p.Waiting())
	assert.False(t, p.Enabled())
}

func TestPauseEmptyMatchesAll(t *testing.T) {
	p := NewPause("hang")
	p.Enable("")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, p.PauseWhileSet(ctx, "anything"))
	assert.True(t, p.PauseWhileSet(ctx, "other"))
	assert.Equal(t, 2, p.Hits())
	p.Disable()
	p.Disable()
}
