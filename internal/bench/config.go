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

package bench

import (
	"errors"
	"fmt"
	"math"

	"pqbench/internal/gc"
	"pqbench/internal/pq"
)

// ErrInvalidConfig is returned by Validate and New for unusable settings.
var ErrInvalidConfig = errors.New("bench: invalid config")

// Config fixes one run. Worker count and workload size never change once a
// run has started.
type Config struct {
	Workers      int
	TotalOps     int
	MaxKey       uint64 // keys are drawn from [1, MaxKey]
	Unique       bool   // apply the uniqueness transform after generation
	CapacityHint int
	Backend      pq.Kind

	// Verify records delete-min results and checks them after the phase.
	// The bookkeeping runs inside the timed window.
	Verify bool

	// Teardown destroys the queue and releases the GC subsystem at the end of
	// Run. Off by default so reclamation cost stays out of the run.
	Teardown bool

	PinCPUs bool
	GCMode  gc.Mode

	RedisAddr string
	RedisKey  string
}

// DefaultConfig returns the stock workload: 100M operations over the full
// 64-bit key space with unique keys on the heap backend.
func DefaultConfig() Config {
	return Config{
		Workers:      1,
		TotalOps:     100_000_000,
		MaxKey:       math.MaxUint64,
		Unique:       true,
		CapacityHint: 10,
		Backend:      pq.KindHeap,
		GCMode:       gc.ModeDefault,
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers))
	}
	if c.TotalOps < 0 {
		errs = append(errs, fmt.Errorf("%w: total ops must be >= 0, got %d", ErrInvalidConfig, c.TotalOps))
	}
	if c.MaxKey == 0 {
		errs = append(errs, fmt.Errorf("%w: max key must be >= 1", ErrInvalidConfig))
	}
	if c.CapacityHint < 0 {
		errs = append(errs, fmt.Errorf("%w: capacity hint must be >= 0, got %d", ErrInvalidConfig, c.CapacityHint))
	}
	if _, err := pq.ParseKind(string(c.Backend)); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}
