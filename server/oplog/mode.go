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

package oplog

import "fmt"

// Mode is the replication mode the applier is running in.
type Mode int

const (
	// ModeSecondary is steady state replication on a secondary.
	ModeSecondary Mode = iota
	// ModeInitialSync applies the oplog fetched while cloning data.
	ModeInitialSync
	// ModeRecovering replays the local oplog during startup recovery.
	ModeRecovering
	// ModeApplyOps is the applyOps command issued by a user.
	ModeApplyOps
)

var modeNames = map[Mode]string{
	ModeSecondary:   "secondary",
	ModeInitialSync: "initial-sync",
	ModeRecovering:  "recovering",
	ModeApplyOps:    "apply-ops",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts the textual mode used in configuration files.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown oplog application mode %q", s)
}
