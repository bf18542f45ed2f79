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

// Package provider starts databases for tests and connects to them.
//
// SQLite always works. PostgreSQL and MySQL use HYPERSIST_TESTING_PG_URL and
// HYPERSIST_TESTING_MYSQL_URL when set, or a docker container when
// HYPERSIST_TESTING_DOCKER=true. Otherwise Start fails with
// ErrProviderUnavailable, which tests treat as a reason to skip.
package provider
