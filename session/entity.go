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
	"fmt"
	"reflect"
	"strings"

	"github.com/uptrace/bun/schema"
)

// entry is the session bookkeeping for one managed instance.
type entry struct {
	entity        interface{}
	value         reflect.Value
	table         *schema.Table
	pendingInsert bool
	pendingUpdate bool
}

func (s *session) tableOf(typ reflect.Type) (*schema.Table, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotEntity, typ)
	}
	table := s.db.Dialect().Tables().Get(typ)
	if table == nil || len(table.PKs) == 0 {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrNotEntity, typ)
	}
	return table, nil
}

// inspect validates entity and returns a detached entry describing it.
func (s *session) inspect(entity interface{}) (*entry, error) {
	if entity == nil {
		return nil, ErrNotEntity
	}
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("%w: %T", ErrNotEntity, entity)
	}
	table, err := s.tableOf(v.Elem().Type())
	if err != nil {
		return nil, err
	}
	return &entry{entity: entity, value: v, table: table}, nil
}

// key returns the identity map key, or false while any primary key column
// still holds its zero value.
func (e *entry) key() (string, bool) {
	strct := e.value.Elem()
	parts := make([]string, len(e.table.PKs))
	for i, pk := range e.table.PKs {
		fv := strct.FieldByIndex(pk.Index)
		if fv.IsZero() {
			return "", false
		}
		parts[i] = fmt.Sprint(fv.Interface())
	}
	return identityKey(e.table.Type, parts...), true
}

// hasKey reports whether every primary key column is set.
func (e *entry) hasKey() bool {
	_, ok := e.key()
	return ok
}

func identityKey(typ reflect.Type, ids ...string) string {
	return typ.String() + "#" + strings.Join(ids, ",")
}

// clone returns a new pointer holding a shallow copy of e's state.
func (e *entry) clone() *entry {
	cp := reflect.New(e.value.Elem().Type())
	cp.Elem().Set(e.value.Elem())
	return &entry{entity: cp.Interface(), value: cp, table: e.table}
}

// copyState overwrites dst's fields with src's.
func copyState(dst, src reflect.Value) {
	dst.Elem().Set(src.Elem())
}

// modelType accepts *T, T or a reflect.Type and returns the struct type.
func modelType(model interface{}) (reflect.Type, error) {
	if model == nil {
		return nil, ErrNotEntity
	}
	typ, ok := model.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(model)
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotEntity, typ)
	}
	return typ, nil
}

func isNilID(id interface{}) bool {
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

// sliceOf builds a *[]*T over the entities of group for bun multi-row
// queries.
func sliceOf(group []*entry) interface{} {
	sv := reflect.MakeSlice(reflect.SliceOf(group[0].value.Type()), 0, len(group))
	for _, e := range group {
		sv = reflect.Append(sv, e.value)
	}
	ptr := reflect.New(sv.Type())
	ptr.Elem().Set(sv)
	return ptr.Interface()
}
