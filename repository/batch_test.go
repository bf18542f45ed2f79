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

package repository

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/hypersist/session"
)

func openSession(t *testing.T, opts ...session.Option) session.Session {
	t.Helper()
	fx := newFixture(t)
	return session.NewFactory(fx.db, opts...).OpenSession(nil)
}

func TestBatchSizeHint(t *testing.T) {
	t.Run("unsupported driver", func(t *testing.T) {
		s := openSession(t, session.WithBatchUpdates(false))
		s.SetBatchSize(intPtr(25))
		hint := BatchSizeHint(s)
		require.NotNil(t, hint)
		assert.Equal(t, math.MinInt32, *hint)
		assert.Equal(t, 25, *s.BatchSize())
	})

	t.Run("supported driver without batch size", func(t *testing.T) {
		s := openSession(t)
		assert.Nil(t, BatchSizeHint(s))
		assert.Nil(t, s.BatchSize())
	})

	t.Run("supported driver with batch size", func(t *testing.T) {
		s := openSession(t)
		s.SetBatchSize(intPtr(25))
		hint := BatchSizeHint(s)
		require.NotNil(t, hint)
		assert.Equal(t, 25, *hint)

		*hint = 99
		assert.Equal(t, 25, *s.BatchSize())
	})

	t.Run("falls back to the factory batch size", func(t *testing.T) {
		s := openSession(t, session.WithBatchSize(7))
		hint := BatchSizeHint(s)
		require.NotNil(t, hint)
		assert.Equal(t, 7, *hint)
		assert.Nil(t, s.BatchSize())

		s.SetBatchSize(intPtr(30))
		assert.Equal(t, 30, *BatchSizeHint(s))
	})

	t.Run("unsupported driver ignores the factory batch size", func(t *testing.T) {
		s := openSession(t, session.WithBatchSize(7), session.WithBatchUpdates(false))
		assert.Equal(t, math.MinInt32, *BatchSizeHint(s))
	})

	t.Run("hint follows later changes", func(t *testing.T) {
		s := openSession(t)
		assert.Nil(t, BatchSizeHint(s))
		s.SetBatchSize(intPtr(5))
		assert.Equal(t, 5, *BatchSizeHint(s))
	})
}

func TestExecuteBatch(t *testing.T) {
	t.Run("installs the default when unset", func(t *testing.T) {
		s := openSession(t)
		got, err := ExecuteBatch(s, func() (int, error) {
			return *s.BatchSize(), nil
		})
		require.NoError(t, err)
		assert.Equal(t, DefaultBatchSize, got)
		assert.Nil(t, s.BatchSize())
	})

	t.Run("installs the default for unsupported drivers", func(t *testing.T) {
		s := openSession(t, session.WithBatchUpdates(false))
		got, err := ExecuteBatch(s, func() (int, error) {
			return *s.BatchSize(), nil
		})
		require.NoError(t, err)
		assert.Equal(t, DefaultBatchSize, got)
		assert.Nil(t, s.BatchSize())
	})

	t.Run("keeps a configured size", func(t *testing.T) {
		s := openSession(t)
		s.SetBatchSize(intPtr(25))
		got, err := ExecuteBatch(s, func() (int, error) {
			return *s.BatchSize(), nil
		})
		require.NoError(t, err)
		assert.Equal(t, 25, got)
		assert.Equal(t, 25, *s.BatchSize())
	})

	t.Run("restores after failure and returns the error unchanged", func(t *testing.T) {
		s := openSession(t)
		boom := errors.New("boom")
		got, err := ExecuteBatch(s, func() (string, error) {
			return "partial", boom
		})
		assert.Same(t, boom, err)
		assert.Equal(t, "partial", got)
		assert.Nil(t, s.BatchSize())
	})

	t.Run("restores after a change made by fn", func(t *testing.T) {
		s := openSession(t)
		s.SetBatchSize(intPtr(3))
		_, err := ExecuteBatch(s, func() (struct{}, error) {
			s.SetBatchSize(intPtr(50))
			return struct{}{}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, *s.BatchSize())
	})

	t.Run("restores after panic", func(t *testing.T) {
		s := openSession(t)
		assert.PanicsWithValue(t, "kaboom", func() {
			_, _ = ExecuteBatch(s, func() (int, error) {
				panic("kaboom")
			})
		})
		assert.Nil(t, s.BatchSize())
	})
}

func TestFormatBatchSize(t *testing.T) {
	assert.Equal(t, "unset", formatBatchSize(nil))
	assert.Equal(t, "10", formatBatchSize(intPtr(10)))
	assert.Equal(t, "-2147483648", formatBatchSize(intPtr(UnsupportedBatchSize)))
}
