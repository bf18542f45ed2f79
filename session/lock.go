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
	"github.com/tomoncle/hypersist/types"
	"github.com/uptrace/bun/dialect"
)

// LockMode is the row lock requested by Find.
type LockMode int

const (
	LockNone LockMode = iota
	LockPessimisticRead
	LockPessimisticWrite
	LockPessimisticWriteNoWait
	LockPessimisticWriteSkipLocked
)

var _ types.BaseEnum = LockNone

var lockModes = []struct {
	name   string
	desc   string
	clause string
}{
	LockNone:                       {"none", "no row lock", ""},
	LockPessimisticRead:            {"pessimistic_read", "shared row lock", "SHARE"},
	LockPessimisticWrite:           {"pessimistic_write", "exclusive row lock", "UPDATE"},
	LockPessimisticWriteNoWait:     {"pessimistic_write_nowait", "exclusive row lock, fail if held", "UPDATE NOWAIT"},
	LockPessimisticWriteSkipLocked: {"pessimistic_write_skip_locked", "exclusive row lock, skip held rows", "UPDATE SKIP LOCKED"},
}

// LockModes lists every valid lock mode.
func LockModes() []LockMode {
	return []LockMode{
		LockNone,
		LockPessimisticRead,
		LockPessimisticWrite,
		LockPessimisticWriteNoWait,
		LockPessimisticWriteSkipLocked,
	}
}

// ParseLockMode resolves a lock mode by its Name.
func ParseLockMode(name string) (LockMode, bool) {
	return types.ParseEnum(name, LockModes()...)
}

func (m LockMode) IsValid() bool { return m >= LockNone && int(m) < len(lockModes) }

func (m LockMode) Number() int {
	if !m.IsValid() {
		return types.IllegalValue
	}
	return int(m)
}

func (m LockMode) Name() string {
	if !m.IsValid() {
		return types.IllegalName
	}
	return lockModes[m].name
}

func (m LockMode) String() string { return m.Name() }

func (m LockMode) Desc() string {
	if !m.IsValid() {
		return types.IllegalDesc
	}
	return lockModes[m].desc
}

// clause returns the argument for bun's SelectQuery.For, or "" when the
// dialect has no row level locks.
func (m LockMode) clause(name dialect.Name) string {
	if !m.IsValid() || name == dialect.SQLite {
		return ""
	}
	return lockModes[m].clause
}
