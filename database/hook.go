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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var (
	operationColors = map[string]*color.Color{
		"SELECT": color.New(color.FgGreen),
		"INSERT": color.New(color.FgBlue),
		"UPDATE": color.New(color.FgYellow),
		"DELETE": color.New(color.FgMagenta),
	}
	defaultOperationColor = color.New(color.FgRed)
	hookPrefix            = color.New(color.FgCyan).Sprintf("%8s", "[BUN]")
)

// QueryHook prints executed statements colored by operation. The envName
// variable, when present, overrides enabled ("0" or empty disables) and
// verbose ("2").
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// QueryHookOption configures a QueryHook.
type QueryHookOption func(*QueryHook)

func WithHookEnabled(on bool) QueryHookOption { return func(h *QueryHook) { h.enabled = on } }

func WithHookVerbose(on bool) QueryHookOption { return func(h *QueryHook) { h.verbose = on } }

func WithHookWriter(w io.Writer) QueryHookOption { return func(h *QueryHook) { h.writer = w } }

func WithHookEnv(name string) QueryHookOption { return func(h *QueryHook) { h.envName = name } }

// NewQueryHook returns an enabled hook writing to stdout.
func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{enabled: true, writer: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	enabled := h.enabled
	verbose := h.verbose
	if h.envName != "" {
		if env, ok := os.LookupEnv(h.envName); ok {
			enabled = env != "" && env != "0"
			verbose = env == "2"
		}
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		hookPrefix,
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", color.New(color.BgRed).Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(operation string) *color.Color {
	if c, ok := operationColors[operation]; ok {
		return c
	}
	return defaultOperationColor
}

// RecordedQuery is a statement observed by a QueryRecorder.
type RecordedQuery struct {
	Operation string
	Query     string
	Err       error
}

// QueryRecorder keeps every statement executed through the database it is
// attached to, in execution order.
type QueryRecorder struct {
	mu      sync.Mutex
	queries []RecordedQuery
}

var _ bun.QueryHook = (*QueryRecorder)(nil)

func (r *QueryRecorder) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (r *QueryRecorder) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, RecordedQuery{
		Operation: event.Operation(),
		Query:     event.Query,
		Err:       event.Err,
	})
}

// Queries returns a copy of the recorded statements.
func (r *QueryRecorder) Queries() []RecordedQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedQuery, len(r.queries))
	copy(out, r.queries)
	return out
}

// Count returns how many recorded statements had the given operation.
func (r *QueryRecorder) Count(operation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, q := range r.queries {
		if q.Operation == operation {
			n++
		}
	}
	return n
}

func (r *QueryRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = nil
}
