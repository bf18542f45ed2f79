/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hypersist"

var (
	flushStatements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "flush_statements_total",
		Help:      "Number of write statements executed by session flushes.",
	}, []string{"operation"})

	flushedEntities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "flushed_entities_total",
		Help:      "Number of entities written by session flushes.",
	}, []string{"operation"})

	batchOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "batch_operations_total",
		Help:      "Number of batch scoped repository operations by outcome.",
	}, []string{"operation", "outcome"})
)

// RegisterMetrics registers the session collectors with reg. Collectors that
// are already registered are skipped.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{flushStatements, flushedEntities, batchOperations} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func observeStatement(operation string, entities int) {
	flushStatements.WithLabelValues(operation).Inc()
	flushedEntities.WithLabelValues(operation).Add(float64(entities))
}

// ObserveBatchOperation records the outcome of a repository operation.
func ObserveBatchOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	batchOperations.WithLabelValues(operation, outcome).Inc()
}
