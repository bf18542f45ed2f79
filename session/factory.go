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
	"database/sql"

	"github.com/tomoncle/hypersist/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
)

// DriverMetadata describes what the connected driver can do for flushes.
type DriverMetadata struct {
	Dialect dialect.Name
	// SupportsBatchUpdates reports whether several rows may be written by
	// one statement.
	SupportsBatchUpdates bool
	// SupportsBulkUpdate reports whether updates of several rows can share
	// one statement. Only pg and sqlite qualify.
	SupportsBulkUpdate bool
}

// Factory opens sessions over one bun.DB. It is safe for concurrent use.
type Factory struct {
	db           *bun.DB
	batchSize    int
	batchUpdates *bool
	logger       database.Logger
}

type Option func(*Factory)

// WithBatchSize sets the batch size used by sessions that have none.
func WithBatchSize(size int) Option {
	return func(f *Factory) { f.batchSize = size }
}

// WithBatchUpdates overrides the driver batching capability reported by
// Metadata.
func WithBatchUpdates(on bool) Option {
	return func(f *Factory) { f.batchUpdates = &on }
}

func WithLogger(logger database.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewFactory(db *bun.DB, opts ...Option) *Factory {
	f := &Factory{db: db, logger: database.GetLogger()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFactoryFromConfig applies BatchSize and BatchUpdates from cfg before
// opts.
func NewFactoryFromConfig(db *bun.DB, cfg *database.ConnectionConfig, opts ...Option) *Factory {
	var base []Option
	if cfg != nil {
		if cfg.BatchSize > 0 {
			base = append(base, WithBatchSize(cfg.BatchSize))
		}
		if cfg.BatchUpdates != nil {
			base = append(base, WithBatchUpdates(*cfg.BatchUpdates))
		}
	}
	return NewFactory(db, append(base, opts...)...)
}

func (f *Factory) DB() *bun.DB { return f.db }

func (f *Factory) Logger() database.Logger { return f.logger }

// BatchSize returns the factory level batch size, 0 when unset.
func (f *Factory) BatchSize() int { return f.batchSize }

// Metadata inspects the dialect on every call.
func (f *Factory) Metadata() DriverMetadata {
	d := f.db.Dialect()
	meta := DriverMetadata{Dialect: d.Name()}
	switch d.Name() {
	case dialect.PG, dialect.MySQL, dialect.SQLite:
		meta.SupportsBatchUpdates = true
	}
	if f.batchUpdates != nil {
		meta.SupportsBatchUpdates = *f.batchUpdates
	}
	switch d.Name() {
	case dialect.PG, dialect.SQLite:
		// bun bulk updates join a VALUES CTE with UPDATE ... FROM, which
		// mysql lacks.
		meta.SupportsBulkUpdate = meta.SupportsBatchUpdates &&
			d.Features().Has(feature.CTE|feature.WithValues)
	}
	return meta
}

// OpenSession returns a session over db, or over the factory database when
// db is nil. The caller owns the session and must flush it.
func (f *Factory) OpenSession(db bun.IDB) Session {
	if db == nil {
		db = f.db
	}
	return newSession(f, db)
}

// RunInTransaction runs fn with the session found in ctx. Without one it
// begins a transaction, opens a session on it and flushes that session
// before commit. Any error rolls the transaction back.
func (f *Factory) RunInTransaction(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	if s, ok := FromContext(ctx); ok {
		return fn(ctx, s)
	}
	return f.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		s := f.OpenSession(tx)
		ctx = NewContext(ctx, s)
		if err := fn(ctx, s); err != nil {
			return err
		}
		return s.Flush(ctx)
	})
}
