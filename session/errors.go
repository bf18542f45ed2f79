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

import "errors"

var (
	// ErrNotEntity is returned for values that are not non-nil pointers to
	// bun model structs with a primary key.
	ErrNotEntity = errors.New("session: value is not an entity")

	// ErrEntityExists is returned by Persist when another instance with the
	// same identity is already managed.
	ErrEntityExists = errors.New("session: an entity with the same identity is already managed")

	// ErrNonUniqueObject is returned by ForceDirty when a different instance
	// with the same identity is already managed.
	ErrNonUniqueObject = errors.New("session: a different instance with the same identity is already managed")

	// ErrTransientEntity is returned when an operation needs an identity the
	// entity does not have yet.
	ErrTransientEntity = errors.New("session: entity has no identity")

	ErrEntityNotFound = errors.New("session: entity not found")

	ErrIDRequired = errors.New("session: id must not be nil")
)
