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

package hypersist

import (
	"context"
	"sync"

	"github.com/tomoncle/hypersist/database"
	"github.com/tomoncle/hypersist/repository"
	"github.com/tomoncle/hypersist/session"
	"github.com/uptrace/bun"
)

// Service runs repository operations in their own transaction, or joins the
// transaction already bound to ctx.
type Service[T any] interface {
	// Persist inserts a new entity and flushes.
	Persist(ctx context.Context, model *T) (*T, error)

	// PersistAll inserts entities as one batch.
	PersistAll(ctx context.Context, models []*T) ([]*T, error)

	// Merge writes the state of model and returns the managed copy.
	Merge(ctx context.Context, model *T) (*T, error)

	// MergeAll merges entities as one batch.
	MergeAll(ctx context.Context, models []*T) ([]*T, error)

	// Update forces an update of a detached entity.
	Update(ctx context.Context, model *T) (*T, error)

	// UpdateAll updates entities as one batch.
	UpdateAll(ctx context.Context, models []*T) ([]*T, error)

	// Lock loads an entity by id with a row lock held until the transaction
	// ends. It returns nil when no row exists.
	Lock(ctx context.Context, id any, mode session.LockMode) (*T, error)

	// InTransaction runs fn with the repository inside one transaction. The
	// session is flushed before commit.
	InTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.BatchRepository[T]) error) error

	// SelectBuilder returns a Bun select query for the entity, bound to the
	// transaction in ctx when there is one.
	SelectBuilder(ctx context.Context) *bun.SelectQuery

	// Factory returns the session factory used by the service.
	Factory() *session.Factory
}

type baseServiceImpl[T any] struct {
	factory *session.Factory
	repo    repository.BatchRepository[T]
	once    sync.Once
}

// NewService returns a Service backed by the global database connection.
// The connection is resolved on first use.
func NewService[T any]() Service[T] {
	return &baseServiceImpl[T]{}
}

// NewServiceWithFactory returns a Service using f.
func NewServiceWithFactory[T any](f *session.Factory) Service[T] {
	s := &baseServiceImpl[T]{factory: f}
	s.init()
	return s
}

func (s *baseServiceImpl[T]) init() {
	s.once.Do(func() {
		if s.factory == nil {
			var cfg *database.ConnectionConfig
			if c := database.GetConfig(); c != nil {
				cfg = &c.ConnectionConfig
			}
			s.factory = session.NewFactoryFromConfig(database.GetDB(), cfg)
		}
		s.repo = repository.NewBatchRepository[T](repository.WithLogger(s.factory.Logger()))
	})
}

func (s *baseServiceImpl[T]) Factory() *session.Factory {
	s.init()
	return s.factory
}

func (s *baseServiceImpl[T]) baseRepo() repository.BatchRepository[T] {
	s.init()
	return s.repo
}

func (s *baseServiceImpl[T]) Persist(ctx context.Context, model *T) (*T, error) {
	return inTx(ctx, s, func(ctx context.Context) (*T, error) {
		return s.baseRepo().PersistAndFlush(ctx, model)
	})
}

func (s *baseServiceImpl[T]) PersistAll(ctx context.Context, models []*T) ([]*T, error) {
	return inTx(ctx, s, func(ctx context.Context) ([]*T, error) {
		return s.baseRepo().PersistAllAndFlush(ctx, models)
	})
}

func (s *baseServiceImpl[T]) Merge(ctx context.Context, model *T) (*T, error) {
	return inTx(ctx, s, func(ctx context.Context) (*T, error) {
		return s.baseRepo().MergeAndFlush(ctx, model)
	})
}

func (s *baseServiceImpl[T]) MergeAll(ctx context.Context, models []*T) ([]*T, error) {
	return inTx(ctx, s, func(ctx context.Context) ([]*T, error) {
		return s.baseRepo().MergeAllAndFlush(ctx, models)
	})
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) (*T, error) {
	return inTx(ctx, s, func(ctx context.Context) (*T, error) {
		return s.baseRepo().UpdateAndFlush(ctx, model)
	})
}

func (s *baseServiceImpl[T]) UpdateAll(ctx context.Context, models []*T) ([]*T, error) {
	return inTx(ctx, s, func(ctx context.Context) ([]*T, error) {
		return s.baseRepo().UpdateAllAndFlush(ctx, models)
	})
}

func (s *baseServiceImpl[T]) Lock(ctx context.Context, id any, mode session.LockMode) (*T, error) {
	return inTx(ctx, s, func(ctx context.Context) (*T, error) {
		return s.baseRepo().LockByID(ctx, id, mode)
	})
}

func (s *baseServiceImpl[T]) InTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.BatchRepository[T]) error) error {
	return s.Factory().RunInTransaction(ctx, func(ctx context.Context, _ session.Session) error {
		return fn(ctx, s.baseRepo())
	})
}

func (s *baseServiceImpl[T]) SelectBuilder(ctx context.Context) *bun.SelectQuery {
	if sess, ok := session.FromContext(ctx); ok {
		return sess.DB().NewSelect().Model((*T)(nil))
	}
	return s.Factory().DB().NewSelect().Model((*T)(nil))
}

func inTx[T, R any](ctx context.Context, s *baseServiceImpl[T], fn func(ctx context.Context) (R, error)) (R, error) {
	var result R
	err := s.Factory().RunInTransaction(ctx, func(ctx context.Context, _ session.Session) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
