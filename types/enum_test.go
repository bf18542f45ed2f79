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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type color int

const (
	red color = iota
	green
)

func (c color) IsValid() bool  { return c == red || c == green }
func (c color) Number() int    { return int(c) }
func (c color) String() string { return c.Name() }
func (c color) Desc() string   { return c.Name() }
func (c color) Name() string {
	switch c {
	case red:
		return "red"
	case green:
		return "green"
	default:
		return IllegalName
	}
}

func TestParseEnum(t *testing.T) {
	got, ok := ParseEnum(" GREEN ", red, green)
	assert.True(t, ok)
	assert.Equal(t, green, got)

	got, ok = ParseEnum("blue", red, green)
	assert.False(t, ok)
	assert.Equal(t, color(0), got)

	_, ok = ParseEnum[color]("red")
	assert.False(t, ok)
}
