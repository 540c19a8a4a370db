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

package backend

import "github.com/prometheus/client_golang/prometheus"

var (
	commitSec = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "oplog",
		Subsystem: "backend",
		Name:      "crud_commit_duration_seconds",
		Help:      "The latency distributions of CRUD commits called by the applier.",

		// lowest bucket start of upper bound 0.001 sec (1 ms) with factor 2
		// highest bucket start of 0.001 sec * 2^13 == 8.192 sec
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oplog",
			Subsystem: "backend",
			Name:      "writes_total",
			Help:      "The total number of documents written, by op type.",
		},
		[]string{"op"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oplog",
			Subsystem: "backend",
			Name:      "commands_total",
			Help:      "The total number of commands applied, by command.",
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(commitSec)
	prometheus.MustRegister(writesTotal)
	prometheus.MustRegister(commandsTotal)
}
