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

// Package session implements a unit of work on top of bun.
//
// A Session keeps an identity map of managed entities and a queue of
// pending inserts and updates. Nothing is written until Flush, which groups
// consecutive entities of the same type into multi-row statements sized by
// the session batch size:
//
//	f := session.NewFactory(db, session.WithBatchSize(50))
//	err := f.RunInTransaction(ctx, func(ctx context.Context, s session.Session) error {
//		return s.Persist(ctx, &Post{Title: "hello"})
//	})
//
// RunInTransaction stores the session in the context so nested calls join
// the same transaction.
package session
