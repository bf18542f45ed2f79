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


// Package repository provides a generic batch-aware repository over the
// unit of work in package session.
//
// Persist, Merge and Update are the three ways to hand an entity to the
// session:
//
//   - Persist schedules an insert and returns its argument.
//   - Merge copies the argument onto a managed instance and returns that
//     instance, which may be a different pointer.
//   - Update reattaches a detached entity and forces an update.
//
// The ...AndFlush variants flush after the primitive. The ...AllAndFlush
// variants run through ExecuteBatch, which makes sure a batch size is in
// effect while the writes are flushed and restores the previous size
// afterwards.
package repository
