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
	"fmt"
	"reflect"
)

// Reference is a lazy handle to an entity. Nothing is read until Load.
type Reference struct {
	session *session
	typ     reflect.Type
	id      interface{}
	entity  interface{}
}

func (r *Reference) ID() interface{} { return r.id }

func (r *Reference) Type() reflect.Type { return r.typ }

// Loaded reports whether Load has already resolved the entity.
func (r *Reference) Loaded() bool { return r.entity != nil }

// Load resolves the entity through the owning session. A missing row yields
// ErrEntityNotFound.
func (r *Reference) Load(ctx context.Context) (interface{}, error) {
	if r.entity != nil {
		return r.entity, nil
	}
	entity, err := r.session.Find(ctx, r.typ, r.id, LockNone)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s#%v", ErrEntityNotFound, r.typ, r.id)
	}
	r.entity = entity
	return entity, nil
}
