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

// Reference is a typed lazy handle returned by GetReferenceByID.
type Reference[T any] struct {
	ref *session.Reference
}

func (r *Reference[T]) ID() any { return r.ref.ID() }

func (r *Reference[T]) Loaded() bool { return r.ref.Loaded() }

// Load reads the entity on first use. A missing row yields
// session.ErrEntityNotFound.
func (r *Reference[T]) Load(ctx context.Context) (*T, error) {
	entity, err := r.ref.Load(ctx)
	if err != nil {
		return nil, err
	}
	return entity.(*T), nil
}
