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

	"github.com/tomoncle/hypersist/session"
)

// PersistRepository schedules inserts of new entities. The returned pointer
// is always the argument.
type PersistRepository[T any] interface {
	Persist(ctx context.Context, entity *T) (*T, error)
	PersistAndFlush(ctx context.Context, entity *T) (*T, error)
	PersistAll(ctx context.Context, entities []*T) ([]*T, error)
	PersistAllAndFlush(ctx context.Context, entities []*T) ([]*T, error)
}

// MergeRepository copies entity state onto managed instances. Callers must
// keep working with the returned pointers; changes made to the arguments
// after the call are not written.
type MergeRepository[T any] interface {
	Merge(ctx context.Context, entity *T) (*T, error)
	MergeAndFlush(ctx context.Context, entity *T) (*T, error)
	MergeAll(ctx context.Context, entities []*T) ([]*T, error)
	MergeAllAndFlush(ctx context.Context, entities []*T) ([]*T, error)
}

// UpdateRepository reattaches detached entities and forces an update for
// them. The returned pointer is always the argument.
type UpdateRepository[T any] interface {
	Update(ctx context.Context, entity *T) (*T, error)
	UpdateAndFlush(ctx context.Context, entity *T) (*T, error)
	UpdateAll(ctx context.Context, entities []*T) ([]*T, error)
	UpdateAllAndFlush(ctx context.Context, entities []*T) ([]*T, error)
}

// LookupRepository resolves entities by identifier.
type LookupRepository[T any] interface {
	// GetReferenceByID returns a lazy reference without reading the row.
	GetReferenceByID(ctx context.Context, id any) (*Reference[T], error)
	// LockByID loads the row and locks it with mode. It returns nil, nil
	// when no row exists.
	LockByID(ctx context.Context, id any, mode session.LockMode) (*T, error)
}

// BatchRepository combines the persist, merge, update and lookup
// operations. Every operation runs against the session bound to ctx and
// fails with ErrNoTransaction when there is none. The ...All variants
// return results in input order, and the ...AllAndFlush variants run
// inside ExecuteBatch.
type BatchRepository[T any] interface {
	PersistRepository[T]
	MergeRepository[T]
	UpdateRepository[T]
	LookupRepository[T]
}
