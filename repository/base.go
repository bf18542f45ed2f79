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
	"context"
	"errors"
	"reflect"

	"github.com/tomoncle/hypersist/database"
	"github.com/tomoncle/hypersist/session"
)

var (
	// ErrNoTransaction is returned when ctx carries no session.
	ErrNoTransaction = errors.New("repository: no transaction bound to context")

	// ErrIDRequired is returned for nil identifiers, including typed nil
	// pointers.
	ErrIDRequired = session.ErrIDRequired
)

const (
	opPersistAll = "persist_all_and_flush"
	opMergeAll   = "merge_all_and_flush"
	opUpdateAll  = "update_all_and_flush"
)

type batchRepositoryImpl[T any] struct {
	logger database.Logger
}

// Option configures a repository.
type Option func(*options)

type options struct {
	logger database.Logger
}

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewBatchRepository returns a BatchRepository for the bun model T.
func NewBatchRepository[T any](opts ...Option) BatchRepository[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	return &batchRepositoryImpl[T]{logger: o.logger}
}

func (r *batchRepositoryImpl[T]) session(ctx context.Context) (session.Session, error) {
	s, ok := session.FromContext(ctx)
	if !ok {
		return nil, ErrNoTransaction
	}
	return s, nil
}

func (r *batchRepositoryImpl[T]) Persist(ctx context.Context, entity *T) (*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return r.persist(ctx, s, entity)
}

func (r *batchRepositoryImpl[T]) PersistAndFlush(ctx context.Context, entity *T) (*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return flushed(ctx, s, func() (*T, error) { return r.persist(ctx, s, entity) })
}

func (r *batchRepositoryImpl[T]) PersistAll(ctx context.Context, entities []*T) ([]*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return each(ctx, s, entities, r.persist)
}

func (r *batchRepositoryImpl[T]) PersistAllAndFlush(ctx context.Context, entities []*T) ([]*T, error) {
	return r.batch(ctx, opPersistAll, entities, r.persist)
}

func (r *batchRepositoryImpl[T]) Merge(ctx context.Context, entity *T) (*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return r.merge(ctx, s, entity)
}

func (r *batchRepositoryImpl[T]) MergeAndFlush(ctx context.Context, entity *T) (*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return flushed(ctx, s, func() (*T, error) { return r.merge(ctx, s, entity) })
}

func (r *batchRepositoryImpl[T]) MergeAll(ctx context.Context, entities []*T) ([]*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return each(ctx, s, entities, r.merge)
}

func (r *batchRepositoryImpl[T]) MergeAllAndFlush(ctx context.Context, entities []*T) ([]*T, error) {
	return r.batch(ctx, opMergeAll, entities, r.merge)
}

func (r *batchRepositoryImpl[T]) Update(ctx context.Context, entity *T) (*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return r.update(ctx, s, entity)
}

func (r *batchRepositoryImpl[T]) UpdateAndFlush(ctx context.Context, entity *T) (*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return flushed(ctx, s, func() (*T, error) { return r.update(ctx, s, entity) })
}

func (r *batchRepositoryImpl[T]) UpdateAll(ctx context.Context, entities []*T) ([]*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	return each(ctx, s, entities, r.update)
}

func (r *batchRepositoryImpl[T]) UpdateAllAndFlush(ctx context.Context, entities []*T) ([]*T, error) {
	return r.batch(ctx, opUpdateAll, entities, r.update)
}

func (r *batchRepositoryImpl[T]) GetReferenceByID(ctx context.Context, id any) (*Reference[T], error) {
	if isNilID(id) {
		return nil, ErrIDRequired
	}
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := s.Reference((*T)(nil), id)
	if err != nil {
		return nil, err
	}
	return &Reference[T]{ref: ref}, nil
}

func (r *batchRepositoryImpl[T]) LockByID(ctx context.Context, id any, mode session.LockMode) (*T, error) {
	if isNilID(id) {
		return nil, ErrIDRequired
	}
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	entity, err := s.Find(ctx, (*T)(nil), id, mode)
	if err != nil || entity == nil {
		return nil, err
	}
	return entity.(*T), nil
}

func (r *batchRepositoryImpl[T]) persist(ctx context.Context, s session.Session, entity *T) (*T, error) {
	if err := s.Persist(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *batchRepositoryImpl[T]) merge(ctx context.Context, s session.Session, entity *T) (*T, error) {
	managed, err := s.Merge(ctx, entity)
	if err != nil {
		return nil, err
	}
	return managed.(*T), nil
}

func (r *batchRepositoryImpl[T]) update(ctx context.Context, s session.Session, entity *T) (*T, error) {
	if err := s.ForceDirty(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// batch applies op to every entity and flushes, all inside ExecuteBatch.
func (r *batchRepositoryImpl[T]) batch(ctx context.Context, name string, entities []*T, op primitive[T]) ([]*T, error) {
	s, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	out, err := ExecuteBatch(s, func() ([]*T, error) {
		return flushed(ctx, s, func() ([]*T, error) { return each(ctx, s, entities, op) })
	})
	session.ObserveBatchOperation(name, err)
	if err != nil {
		_, class := database.IsSqlError(err)
		r.logger.Error("Batch operation failed",
			"operation", name,
			"entities", len(entities),
			"sql_error", class.String(),
			"error", err)
		return nil, err
	}
	r.logger.Debug("Batch operation completed", "operation", name, "entities", len(out))
	return out, nil
}

type primitive[T any] func(ctx context.Context, s session.Session, entity *T) (*T, error)

func each[T any](ctx context.Context, s session.Session, entities []*T, op primitive[T]) ([]*T, error) {
	out := make([]*T, 0, len(entities))
	for _, entity := range entities {
		result, err := op(ctx, s, entity)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

func flushed[R any](ctx context.Context, s session.Session, fn func() (R, error)) (R, error) {
	result, err := fn()
	if err != nil {
		var zero R
		return zero, err
	}
	if err := s.Flush(ctx); err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

func isNilID(id any) bool {
	if id == nil {
		return true
	}
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}
