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
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func newMockPG(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestPostgresMetadata(t *testing.T) {
	db, _ := newMockPG(t)

	meta := NewFactory(db).Metadata()
	assert.Equal(t, dialect.PG, meta.Dialect)
	assert.True(t, meta.SupportsBatchUpdates)
	assert.True(t, meta.SupportsBulkUpdate)

	meta = NewFactory(db, WithBatchUpdates(false)).Metadata()
	assert.False(t, meta.SupportsBatchUpdates)
	assert.False(t, meta.SupportsBulkUpdate)
}

func TestMySQLMetadataHasNoBulkUpdate(t *testing.T) {
	sqldb, _, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, mysqldialect.New())
	t.Cleanup(func() { _ = db.Close() })

	meta := NewFactory(db).Metadata()
	assert.Equal(t, dialect.MySQL, meta.Dialect)
	assert.True(t, meta.SupportsBatchUpdates)
	assert.False(t, meta.SupportsBulkUpdate)
}

func TestSQLiteMetadata(t *testing.T) {
	meta := NewFactory(openSQLite(t).db).Metadata()
	assert.Equal(t, dialect.SQLite, meta.Dialect)
	assert.True(t, meta.SupportsBatchUpdates)
	assert.True(t, meta.SupportsBulkUpdate)
}

func TestPostgresMultiRowInsert(t *testing.T) {
	db, mock := newMockPG(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO "widgets" .*VALUES \(DEFAULT, 'a', 1\), \(DEFAULT, 'b', 2\) RETURNING "id"$`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	a, b := &widget{Name: "a", Qty: 1}, &widget{Name: "b", Qty: 2}
	err := NewFactory(db, WithBatchSize(10)).RunInTransaction(ctx, func(ctx context.Context, s Session) error {
		if err := s.Persist(ctx, a); err != nil {
			return err
		}
		return s.Persist(ctx, b)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBulkUpdate(t *testing.T) {
	db, mock := newMockPG(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`^WITH "_data"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := NewFactory(db).RunInTransaction(ctx, func(ctx context.Context, s Session) error {
		s.SetBatchSize(intPtr(25))
		for i, w := range []*widget{{ID: 1, Name: "x"}, {ID: 2, Name: "y"}} {
			w.Qty = i
			if err := s.ForceDirty(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateWithoutBatchUpdates(t *testing.T) {
	db, mock := newMockPG(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`^UPDATE "widgets" AS "w" SET .*'x'.* WHERE \("w"\."id" = 1\)$`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE "widgets" AS "w" SET .*'y'.* WHERE \("w"\."id" = 2\)$`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewFactory(db, WithBatchUpdates(false), WithBatchSize(10)).RunInTransaction(ctx, func(ctx context.Context, s Session) error {
		for _, w := range []*widget{{ID: 1, Name: "x"}, {ID: 2, Name: "y"}} {
			if err := s.ForceDirty(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindLockClauses(t *testing.T) {
	cases := []struct {
		mode   LockMode
		clause string
	}{
		{LockPessimisticRead, "FOR SHARE"},
		{LockPessimisticWrite, "FOR UPDATE"},
		{LockPessimisticWriteNoWait, "FOR UPDATE NOWAIT"},
		{LockPessimisticWriteSkipLocked, "FOR UPDATE SKIP LOCKED"},
	}
	for _, tc := range cases {
		t.Run(tc.mode.Name(), func(t *testing.T) {
			db, mock := newMockPG(t)
			ctx := context.Background()
			mock.ExpectQuery(`\("w"\."id" = 7\).* ` + regexp.QuoteMeta(tc.clause) + `$`).
				WillReturnRows(sqlmock.NewRows([]string{"id", "name", "qty"}).AddRow(7, "locked", 3))

			s := NewFactory(db).OpenSession(nil)
			got, err := s.Find(ctx, (*widget)(nil), int64(7), tc.mode)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "locked", got.(*widget).Name)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresFlushFailureDropsQueue(t *testing.T) {
	db, mock := newMockPG(t)
	ctx := context.Background()
	boom := errors.New("unique violation")

	mock.ExpectBegin()
	mock.ExpectQuery(`^INSERT INTO "widgets"`).WillReturnError(boom)
	mock.ExpectRollback()

	var inner Session
	err := NewFactory(db).RunInTransaction(ctx, func(ctx context.Context, s Session) error {
		inner = s
		return s.Persist(ctx, &widget{Name: "dup"})
	})
	assert.ErrorIs(t, err, boom)
	inserts, updates := inner.Pending()
	assert.Zero(t, inserts)
	assert.Zero(t, updates)
	require.NoError(t, mock.ExpectationsWereMet())
}
