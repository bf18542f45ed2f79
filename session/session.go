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
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/hypersist/database"
	"github.com/uptrace/bun"
)

// Session is a unit of work bound to one bun.IDB, normally a transaction.
// Entities are pointers to bun model structs. A Session is not safe for
// concurrent use.
type Session interface {
	// Persist schedules an insert for a new entity and makes it managed.
	Persist(ctx context.Context, entity interface{}) error
	// Merge copies entity's state onto a managed instance and returns that
	// instance. entity itself never becomes managed.
	Merge(ctx context.Context, entity interface{}) (interface{}, error)
	// ForceDirty reattaches a detached entity and schedules an update for it
	// whether or not its state changed.
	ForceDirty(ctx context.Context, entity interface{}) error
	// Find loads an entity by id. It returns nil, nil when no row exists.
	Find(ctx context.Context, model interface{}, id interface{}, mode LockMode) (interface{}, error)
	// Reference returns a lazy handle without touching the database.
	Reference(model interface{}, id interface{}) (*Reference, error)
	// Flush executes every pending write.
	Flush(ctx context.Context) error

	Contains(entity interface{}) bool
	Pending() (inserts, updates int)
	Clear()

	// BatchSize returns a copy of the session batch size, nil when unset.
	// An unset session falls back to the factory batch size on flush.
	BatchSize() *int
	// SetBatchSize stores a copy of size. nil clears the setting.
	SetBatchSize(size *int)

	DB() bun.IDB
	Factory() *Factory
}

type session struct {
	factory   *Factory
	db        bun.IDB
	logger    database.Logger
	batchSize *int

	managed  map[interface{}]*entry
	identity map[string]*entry
	inserts  []*entry
	updates  []*entry
}

var _ Session = (*session)(nil)

func newSession(f *Factory, db bun.IDB) *session {
	return &session{
		factory:  f,
		db:       db,
		logger:   f.logger,
		managed:  make(map[interface{}]*entry),
		identity: make(map[string]*entry),
	}
}

func (s *session) DB() bun.IDB { return s.db }

func (s *session) Factory() *Factory { return s.factory }

func (s *session) Contains(entity interface{}) bool {
	if entity == nil {
		return false
	}
	_, ok := s.managed[entity]
	return ok
}

func (s *session) Pending() (int, int) { return len(s.inserts), len(s.updates) }

func (s *session) Clear() {
	s.managed = make(map[interface{}]*entry)
	s.identity = make(map[string]*entry)
	s.inserts, s.updates = nil, nil
}

func (s *session) BatchSize() *int {
	if s.batchSize == nil {
		return nil
	}
	size := *s.batchSize
	return &size
}

func (s *session) SetBatchSize(size *int) {
	if size == nil {
		s.batchSize = nil
		return
	}
	v := *size
	s.batchSize = &v
}

func (s *session) manage(e *entry) *entry {
	s.managed[e.entity] = e
	if key, ok := e.key(); ok {
		s.identity[key] = e
	}
	return e
}

func (s *session) scheduleInsert(e *entry) {
	e.pendingInsert = true
	s.inserts = append(s.inserts, e)
}

// markDirty queues an update unless e already has a pending write.
func (s *session) markDirty(e *entry) {
	if e.pendingInsert || e.pendingUpdate {
		return
	}
	e.pendingUpdate = true
	s.updates = append(s.updates, e)
}

func (s *session) Persist(ctx context.Context, entity interface{}) error {
	e, err := s.inspect(entity)
	if err != nil {
		return err
	}
	if _, ok := s.managed[entity]; ok {
		return nil
	}
	if key, ok := e.key(); ok {
		if _, found := s.identity[key]; found {
			return fmt.Errorf("%w: %s", ErrEntityExists, key)
		}
	}
	s.scheduleInsert(s.manage(e))
	return nil
}

func (s *session) Merge(ctx context.Context, entity interface{}) (interface{}, error) {
	e, err := s.inspect(entity)
	if err != nil {
		return nil, err
	}
	if _, ok := s.managed[entity]; ok {
		return entity, nil
	}

	key, hasID := e.key()
	if hasID {
		if current, ok := s.identity[key]; ok {
			copyState(current.value, e.value)
			s.markDirty(current)
			return current.entity, nil
		}
	}

	managed := e.clone()
	exists := false
	if hasID {
		exists, err = s.db.NewSelect().Model(managed.entity).WherePK().Exists(ctx)
		if err != nil {
			return nil, err
		}
	}
	s.manage(managed)
	if exists {
		s.markDirty(managed)
	} else {
		s.scheduleInsert(managed)
	}
	return managed.entity, nil
}

func (s *session) ForceDirty(ctx context.Context, entity interface{}) error {
	e, err := s.inspect(entity)
	if err != nil {
		return err
	}
	if current, ok := s.managed[entity]; ok {
		s.markDirty(current)
		return nil
	}
	key, ok := e.key()
	if !ok {
		return fmt.Errorf("%w: %T", ErrTransientEntity, entity)
	}
	if _, found := s.identity[key]; found {
		return fmt.Errorf("%w: %s", ErrNonUniqueObject, key)
	}
	s.markDirty(s.manage(e))
	return nil
}

func (s *session) Find(ctx context.Context, model interface{}, id interface{}, mode LockMode) (interface{}, error) {
	if isNilID(id) {
		return nil, ErrIDRequired
	}
	typ, err := modelType(model)
	if err != nil {
		return nil, err
	}
	table, err := s.tableOf(typ)
	if err != nil {
		return nil, err
	}
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s has a composite primary key", ErrNotEntity, typ)
	}
	idValue := reflect.Indirect(reflect.ValueOf(id)).Interface()

	current, isManaged := s.identity[identityKey(typ, fmt.Sprint(idValue))]
	if isManaged && mode == LockNone {
		return current.entity, nil
	}

	dest := reflect.New(typ)
	q := s.db.NewSelect().
		Model(dest.Interface()).
		Where("?TableAlias.? = ?", bun.Ident(table.PKs[0].Name), idValue).
		Limit(1)
	if clause := mode.clause(s.db.Dialect().Name()); clause != "" {
		q = q.For(clause)
	}
	if err := q.Scan(ctx); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		// A managed entity whose insert is still queued has no row yet.
		if isManaged {
			return current.entity, nil
		}
		return nil, nil
	}
	if isManaged {
		return current.entity, nil
	}
	found := s.manage(&entry{entity: dest.Interface(), value: dest, table: table})
	return found.entity, nil
}

func (s *session) Reference(model interface{}, id interface{}) (*Reference, error) {
	if isNilID(id) {
		return nil, ErrIDRequired
	}
	typ, err := modelType(model)
	if err != nil {
		return nil, err
	}
	if _, err := s.tableOf(typ); err != nil {
		return nil, err
	}
	return &Reference{session: s, typ: typ, id: id}, nil
}
