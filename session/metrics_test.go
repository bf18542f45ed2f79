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
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))
}

func TestFlushRecordsMetrics(t *testing.T) {
	tdb := openSQLite(t)
	ctx := context.Background()

	statements := testutil.ToFloat64(flushStatements.WithLabelValues(operationInsert))
	entities := testutil.ToFloat64(flushedEntities.WithLabelValues(operationInsert))

	err := NewFactory(tdb.db, WithBatchSize(2)).RunInTransaction(ctx, func(ctx context.Context, s Session) error {
		for _, w := range widgets(3) {
			if err := s.Persist(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, statements+2, testutil.ToFloat64(flushStatements.WithLabelValues(operationInsert)))
	assert.Equal(t, entities+3, testutil.ToFloat64(flushedEntities.WithLabelValues(operationInsert)))
}

func TestObserveBatchOperation(t *testing.T) {
	ok := testutil.ToFloat64(batchOperations.WithLabelValues("persist_all", "success"))
	failed := testutil.ToFloat64(batchOperations.WithLabelValues("persist_all", "error"))

	ObserveBatchOperation("persist_all", nil)
	ObserveBatchOperation("persist_all", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(batchOperations.WithLabelValues("persist_all", "success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(batchOperations.WithLabelValues("persist_all", "error")))
}
