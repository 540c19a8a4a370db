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

import "github.com/prometheus/client_golang/prometheus"

var (
	opsAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oplog",
		Subsystem: "apply",
		Name:      "ops_applied_total",
		Help:      "The total number of oplog operations applied.",
	})
	writeConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oplog",
			Subsystem: "apply",
			Name:      "write_conflicts_total",
			Help:      "The total number of write conflicts retried, by operation.",
		},
		[]string{"operation"},
	)
	toleratedErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oplog",
			Subsystem: "apply",
			Name:      "tolerated_errors_total",
			Help:      "The total number of application errors ignored, by reason.",
		},
		[]string{"reason"},
	)
	insertGroupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oplog",
		Subsystem: "apply",
		Name:      "insert_groups_total",
		Help:      "The total number of grouped inserts applied.",
	})
	insertGroupFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oplog",
		Subsystem: "apply",
		Name:      "insert_group_fallbacks_total",
		Help:      "The total number of grouped inserts that failed and were retried one by one.",
	})
	batchFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oplog",
		Subsystem: "apply",
		Name:      "batch_failures_total",
		Help:      "The total number of writer batches stopped by an error.",
	})
	batchApplySec = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "oplog",
		Subsystem: "apply",
		Name:      "batch_duration_seconds",
		Help:      "The latency distributions of applying one writer batch.",

		// lowest bucket start of upper bound 0.0001 sec (0.1 ms) with factor 2
		// highest bucket start of 0.0001 sec * 2^15 == 3.2768 sec
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
)

const (
	reasonDeleteFromMissingNamespace = "delete_from_missing_namespace"
	reasonMissingNamespace           = "namespace_not_found"
	reasonUpdateTargetMissing        = "update_target_missing"
)

func init() {
	prometheus.MustRegister(opsAppliedTotal)
	prometheus.MustRegister(writeConflictsTotal)
	prometheus.MustRegister(toleratedErrorsTotal)
	prometheus.MustRegister(insertGroupsTotal)
	prometheus.MustRegister(insertGroupFallbacksTotal)
	prometheus.MustRegister(batchFailuresTotal)
	prometheus.MustRegister(batchApplySec)
}
