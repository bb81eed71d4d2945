// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gc

import (
	"runtime/debug"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// currentPercent reads GOGC without changing it.
func currentPercent() int {
	p := debug.SetGCPercent(-1)
	debug.SetGCPercent(p)
	return p
}

func TestDisabledModeRestoresPercent(t *testing.T) {
	before := currentPercent()
	require.NotEqual(t, -1, before, "test assumes the collector starts enabled")

	s := Init(ModeDisabled)
	require.Equal(t, ModeDisabled, s.Mode())
	require.Equal(t, -1, currentPercent())

	stats := s.Teardown()
	require.Equal(t, ModeDisabled, stats.Mode)
	require.Equal(t, before, currentPercent())
	require.Zero(t, Refs())
}

func TestNestedReferencesShareFirstMode(t *testing.T) {
	before := currentPercent()

	outer := Init(ModeDisabled)
	inner := Init(ModeDefault)
	require.Equal(t, ModeDisabled, inner.Mode(), "later references join the active mode")
	require.Equal(t, 2, Refs())

	inner.Teardown()
	require.Equal(t, -1, currentPercent(), "collector stays off while a reference is live")

	outer.Teardown()
	require.Equal(t, before, currentPercent())
	require.Zero(t, Refs())
}

func TestTeardownIsIdempotent(t *testing.T) {
	s := Init(ModeDefault)
	sink := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		sink = append(sink, make([]byte, 4096))
	}
	require.Len(t, sink, 64)

	first := s.Teardown()
	second := s.Teardown()
	require.Equal(t, first, second)
	require.GreaterOrEqual(t, first.TotalAlloc, uint64(64*4096))
	require.Zero(t, Refs())
}

func TestConcurrentInitTeardown(t *testing.T) {
	before := currentPercent()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Init(ModeDisabled).Teardown()
		}()
	}
	wg.Wait()
	require.Zero(t, Refs())
	require.Equal(t, before, currentPercent())
}

func TestHumanBytes(t *testing.T) {
	cases := map[uint64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		1 << 20: "1.0 MiB",
		5 << 30: "5.0 GiB",
		1 << 50: "1024.0 TiB",
	}
	for in, want := range cases {
		require.Equal(t, want, humanBytes(in), "humanBytes(%d)", in)
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Mode: ModeDisabled, TotalAlloc: 2048, Mallocs: 3, NumGC: 1, HeapInUse: 10}
	require.Equal(t, "gc=disabled alloc=2.0 KiB mallocs=3 cycles=1 heap_inuse=10 B", s.String())
	require.Equal(t, "Mode(7)", Mode(7).String())
}
