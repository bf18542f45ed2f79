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
	"math"
	"strconv"

	"github.com/tomoncle/hypersist/session"
)

// DefaultBatchSize is installed for the duration of a batch operation when
// the session has no batch size of its own.
const DefaultBatchSize = 10

// UnsupportedBatchSize is the hint reported for drivers that cannot group
// writes.
const UnsupportedBatchSize = math.MinInt32

// BatchSizeHint reports the batch size the session would use. Drivers that
// cannot group writes yield a pointer to UnsupportedBatchSize. Otherwise the
// session batch size is returned, then the factory batch size, and nil when
// neither is set. The hint is recomputed on every call and never written
// into the session.
func BatchSizeHint(s session.Session) *int {
	f := s.Factory()
	meta := f.Metadata()

	var hint *int
	switch {
	case !meta.SupportsBatchUpdates:
		unsupported := UnsupportedBatchSize
		hint = &unsupported
	case s.BatchSize() != nil:
		hint = s.BatchSize()
	case f.BatchSize() > 0:
		size := f.BatchSize()
		hint = &size
	}

	f.Logger().Debug("Resolved batch size hint",
		"dialect", meta.Dialect.String(),
		"batch_updates", meta.SupportsBatchUpdates,
		"hint", formatBatchSize(hint))
	return hint
}

// ExecuteBatch runs fn with a batch size in effect. If the session has no
// batch size, DefaultBatchSize is set before fn runs; a configured size is
// left alone. The previous value is restored on every exit path, panics
// included, and fn's result and error are returned unchanged.
func ExecuteBatch[R any](s session.Session, fn func() (R, error)) (R, error) {
	hint := BatchSizeHint(s)
	original := s.BatchSize()
	if original == nil {
		size := DefaultBatchSize
		s.SetBatchSize(&size)
	}
	defer s.SetBatchSize(original)

	s.Factory().Logger().Debug("Executing batch",
		"hint", formatBatchSize(hint),
		"original", formatBatchSize(original),
		"effective", formatBatchSize(s.BatchSize()))
	return fn()
}

func formatBatchSize(size *int) string {
	if size == nil {
		return "unset"
	}
	return strconv.Itoa(*size)
}
