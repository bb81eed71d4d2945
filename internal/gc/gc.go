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

// Package gc brackets a benchmark run with process-wide collector setup and
// teardown. Init and Teardown are reference counted: nested or concurrent
// users share one configuration and only the last Teardown restores it.
package gc

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Mode selects how the collector behaves while the subsystem is live.
type Mode int

const (
	// ModeDefault leaves the collector untouched.
	ModeDefault Mode = iota
	// ModeDisabled turns automatic collection off (GOGC=off) so the timed
	// phases measure the queue and not the collector.
	ModeDisabled
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

var (
	mu          sync.Mutex
	refs        int
	activeMode  Mode
	prevPercent int
)

// Subsystem is one reference to the process-wide collector setup.
type Subsystem struct {
	once   sync.Once
	mode   Mode
	before runtime.MemStats
	stats  Stats
}

// Init takes a reference. The first reference applies mode; later ones join
// whatever mode is already active.
func Init(mode Mode) *Subsystem {
	mu.Lock()
	defer mu.Unlock()
	if refs == 0 {
		activeMode = mode
		if mode == ModeDisabled {
			prevPercent = debug.SetGCPercent(-1)
		}
	}
	refs++
	s := &Subsystem{mode: activeMode}
	runtime.ReadMemStats(&s.before)
	return s
}

// Mode reports the mode in effect for this reference.
func (s *Subsystem) Mode() Mode { return s.mode }

// Teardown drops the reference and returns the allocation activity seen since
// Init. The last reference restores the collector and forces a cycle.
// Calling Teardown twice is a no-op returning the same Stats.
func (s *Subsystem) Teardown() Stats {
	s.once.Do(func() {
		var after runtime.MemStats
		runtime.ReadMemStats(&after)

		mu.Lock()
		refs--
		last := refs == 0
		if last && activeMode == ModeDisabled {
			debug.SetGCPercent(prevPercent)
		}
		mu.Unlock()

		if last {
			runtime.GC()
		}
		s.stats = Stats{
			Mode:       s.mode,
			TotalAlloc: after.TotalAlloc - s.before.TotalAlloc,
			Mallocs:    after.Mallocs - s.before.Mallocs,
			NumGC:      after.NumGC - s.before.NumGC,
			HeapInUse:  after.HeapInuse,
		}
	})
	return s.stats
}

// Refs returns the number of live references.
func Refs() int {
	mu.Lock()
	defer mu.Unlock()
	return refs
}

// Stats summarises allocator activity over a subsystem's lifetime.
type Stats struct {
	Mode       Mode
	TotalAlloc uint64 // bytes allocated
	Mallocs    uint64
	NumGC      uint32 // completed cycles
	HeapInUse  uint64 // at teardown, before the final collection
}

func (s Stats) String() string {
	return fmt.Sprintf("gc=%s alloc=%s mallocs=%d cycles=%d heap_inuse=%s",
		s.Mode, humanBytes(s.TotalAlloc), s.Mallocs, s.NumGC, humanBytes(s.HeapInUse))
}

func humanBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	d := float64(b)
	units := []string{"KiB", "MiB", "GiB", "TiB"}
	i := -1
	for d >= unit && i < len(units)-1 {
		d /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", d, units[i])
}
