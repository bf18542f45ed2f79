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

package database

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type hookRow struct {
	bun.BaseModel `bun:"table:hook_rows"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

type hookChild struct {
	bun.BaseModel `bun:"table:hook_children"`

	ID    int64 `bun:"id,pk,autoincrement"`
	RowID int64 `bun:"row_id"`
}

func TestQueryHookOutput(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	var verbose bytes.Buffer
	db.AddQueryHook(NewQueryHook(WithHookWriter(&verbose), WithHookVerbose(true)))
	var quiet bytes.Buffer
	db.AddQueryHook(NewQueryHook(WithHookWriter(&quiet)))
	var disabled bytes.Buffer
	db.AddQueryHook(NewQueryHook(WithHookWriter(&disabled), WithHookVerbose(true), WithHookEnv("HYPERSIST_TEST_QUERY_HOOK")))
	t.Setenv("HYPERSIST_TEST_QUERY_HOOK", "0")

	_, err := db.ExecContext(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, verbose.String(), "SELECT 1")
	assert.Contains(t, verbose.String(), "[BUN]")
	assert.Empty(t, quiet.String())

	_, err = db.ExecContext(ctx, "SELECT * FROM missing_table")
	require.Error(t, err)
	assert.Contains(t, quiet.String(), "missing_table")
	assert.Empty(t, disabled.String())
}

func TestQueryRecorder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	rec := &QueryRecorder{}
	db.AddQueryHook(rec)

	require.NoError(t, CreateTables(ctx, db, (*hookRow)(nil)))
	_, err := db.NewInsert().Model(&[]*hookRow{{Name: "a"}, {Name: "b"}}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&hookRow{Name: "a"}).Exec(ctx)
	require.Error(t, err)

	assert.Equal(t, 2, rec.Count("INSERT"))
	queries := rec.Queries()
	require.NotEmpty(t, queries)
	last := queries[len(queries)-1]
	assert.Equal(t, "INSERT", last.Operation)
	assert.Error(t, last.Err)

	rec.Reset()
	assert.Empty(t, rec.Queries())
	assert.Zero(t, rec.Count("INSERT"))
}

func TestCreateAndDropTables(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	models := []interface{}{(*hookRow)(nil), (*hookChild)(nil)}

	require.NoError(t, CreateTables(ctx, db, models...))
	require.NoError(t, CreateTables(ctx, db, models...))
	_, err := db.NewInsert().Model(&hookChild{RowID: 1}).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, DropTables(ctx, db, models...))
	_, err = db.NewSelect().Model((*hookChild)(nil)).Count(ctx)
	is, class := IsSqlError(err)
	assert.True(t, is)
	assert.Equal(t, NoTableErr, class)

	assert.Error(t, CreateTables(ctx, nil, models...))
	assert.Error(t, DropTables(ctx, nil, models...))
}

func TestModelRegistryOrdersByPriority(t *testing.T) {
	first, second, third := &hookRow{}, &hookChild{}, &struct{}{}
	r := NewModelRegistry()
	r.Register(NewModelAdapter(third, 3))
	r.Register(NewModelAdapter(first, 1))
	r.Register(NewModelAdapter(second, 2))
	r.Register(NewModelAdapter("tie", 2))

	instances := r.Instances()
	require.Len(t, instances, 4)
	assert.Same(t, first, instances[0])
	assert.Same(t, second, instances[1])
	assert.Equal(t, "tie", instances[2])
	assert.Same(t, third, instances[3])
}
