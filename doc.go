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


// Package hypersist is a batch-aware persistence layer on top of bun.
//
// Entities are bun models handed to a unit of work (package session)
// through a BatchRepository (package repository). Service wraps every
// repository call in a transaction:
//
//	svc := hypersist.NewService[Post]()
//	posts, err := svc.PersistAll(ctx, []*Post{{Title: "a"}, {Title: "b"}})
//
// Bulk operations group their writes into multi-row statements; when the
// session has no batch size of its own a default of 10 applies for the
// duration of the call.
package hypersist
