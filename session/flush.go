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
	"time"
)

const (
	operationInsert = "insert"
	operationUpdate = "update"
)

// effectiveBatchSize is the number of entities written per statement.
func (s *session) effectiveBatchSize(meta DriverMetadata) int {
	if !meta.SupportsBatchUpdates {
		return 1
	}
	if s.batchSize != nil && *s.batchSize > 0 {
		return *s.batchSize
	}
	if s.factory.batchSize > 0 {
		return s.factory.batchSize
	}
	return 1
}

// Flush writes all pending inserts, then all pending updates. Consecutive
// entities of the same type are grouped into statements of at most the
// effective batch size. The queue is emptied even when a statement fails.
func (s *session) Flush(ctx context.Context) error {
	if len(s.inserts) == 0 && len(s.updates) == 0 {
		return nil
	}
	inserts, updates := s.inserts, s.updates
	s.inserts, s.updates = nil, nil
	defer func() {
		for _, e := range inserts {
			e.pendingInsert = false
		}
		for _, e := range updates {
			e.pendingUpdate = false
		}
	}()

	meta := s.factory.Metadata()
	size := s.effectiveBatchSize(meta)
	start := time.Now()
	s.logger.Debug("Flushing session",
		"inserts", len(inserts), "updates", len(updates),
		"batch_size", size, "dialect", meta.Dialect.String())

	for _, group := range chunk(inserts, size) {
		if err := s.insertGroup(ctx, group); err != nil {
			return err
		}
	}
	for _, group := range chunk(updates, size) {
		if err := s.updateGroup(ctx, group, meta); err != nil {
			return err
		}
	}

	s.logger.Debug("Session flushed", "duration", time.Since(start))
	return nil
}

func (s *session) insertGroup(ctx context.Context, group []*entry) error {
	var model interface{} = group[0].entity
	if len(group) > 1 {
		model = sliceOf(group)
	}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return err
	}
	observeStatement(operationInsert, len(group))
	for _, e := range group {
		e.pendingInsert = false
		if key, ok := e.key(); ok {
			s.identity[key] = e
		}
	}
	return nil
}

func (s *session) updateGroup(ctx context.Context, group []*entry, meta DriverMetadata) error {
	if len(group) > 1 && meta.SupportsBulkUpdate {
		if _, err := s.db.NewUpdate().Model(sliceOf(group)).Bulk().Exec(ctx); err != nil {
			return err
		}
		observeStatement(operationUpdate, len(group))
		return nil
	}
	for _, e := range group {
		if _, err := s.db.NewUpdate().Model(e.entity).WherePK().Exec(ctx); err != nil {
			return err
		}
		observeStatement(operationUpdate, 1)
	}
	return nil
}

// chunk splits entries into runs of one entity type, each at most size long.
// Entities with an assigned key never share a run with entities whose key
// is generated, since a multi-row insert lists one column set for all rows.
func chunk(entries []*entry, size int) [][]*entry {
	if size < 1 {
		size = 1
	}
	var groups [][]*entry
	var current []*entry
	var keyed bool
	for _, e := range entries {
		hasKey := e.hasKey()
		if len(current) > 0 && (len(current) == size || current[0].table != e.table || keyed != hasKey) {
			groups = append(groups, current)
			current = nil
		}
		if len(current) == 0 {
			keyed = hasKey
		}
		current = append(current, e)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
