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

// Package keygen produces the benchmark's key sequence: random keys drawn in
// parallel from independently seeded per-worker streams, plus the optional
// transform that makes them pairwise distinct.
package keygen

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"pqbench/pkg/parallel"
)

// ErrZeroMaxKey is returned when the inclusive key bound is zero; keys are
// drawn from [1, maxKey] so the range would be empty.
var ErrZeroMaxKey = errors.New("keygen: max key must be at least 1")

// Stream is a worker-private pseudo-random source. It is built once by its
// owning worker and never shared, so drawing from it needs no locking.
type Stream struct {
	seed uint64
	rng  *rand.Rand
}

// NewStream returns a stream seeded with seed. Two streams built from the same
// seed produce the same sequence.
func NewStream(seed uint64) *Stream {
	return &Stream{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, Mix64(seed))),
	}
}

// Seed returns the seed the stream was built with.
func (s *Stream) Seed() uint64 { return s.seed }

// Uint64InRange returns a uniformly distributed value in [1, hi].
// hi must be at least 1.
func (s *Stream) Uint64InRange(hi uint64) uint64 {
	if hi == math.MaxUint64 {
		for {
			if v := s.rng.Uint64(); v != 0 {
				return v
			}
		}
	}
	return 1 + s.rng.Uint64N(hi)
}

// Generator draws key sequences for one benchmark run. All worker streams
// derive from a single base seed.
type Generator struct {
	base uint64
}

// NewGenerator draws a base seed from the wall clock and the system entropy
// source. Seeds differ across runs but are fixed for the lifetime of the
// generator.
func NewGenerator() (*Generator, error) {
	e, err := entropy64()
	if err != nil {
		return nil, fmt.Errorf("keygen: read entropy: %w", err)
	}
	return &Generator{base: uint64(time.Now().UnixNano()) ^ e}, nil
}

// NewGeneratorWithSeed returns a generator with a caller-chosen base seed.
func NewGeneratorWithSeed(base uint64) *Generator {
	return &Generator{base: base}
}

// BaseSeed returns the per-run base seed.
func (g *Generator) BaseSeed() uint64 { return g.base }

// SeedFor returns the seed of the given worker's stream: the base seed mixed
// with the worker identity (its ordinal plus one).
func (g *Generator) SeedFor(worker int) uint64 {
	return g.base ^ Mix64(uint64(worker)+1)
}

// StreamFor builds the stream owned by the given worker.
func (g *Generator) StreamFor(worker int) *Stream {
	return NewStream(g.SeedFor(worker))
}

// Generate returns n keys in [1, maxKey]. Index ranges are assigned to workers
// by r; each worker draws from its own stream, so the result is reproducible
// for a fixed base seed and worker count.
func (g *Generator) Generate(r parallel.Runner, n int, maxKey uint64) ([]uint64, error) {
	if maxKey == 0 {
		return nil, ErrZeroMaxKey
	}
	if n < 0 {
		return nil, parallel.ErrInvalidRange
	}
	keys := make([]uint64, n)
	err := parallel.ForEach(r, 0, n, g.StreamFor, func(s *Stream, i int) {
		keys[i] = s.Uint64InRange(maxKey)
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// UniqueKey is the per-index uniqueness transform: (Mix64(key) ^ index) + 1.
func UniqueKey(key uint64, index int) uint64 {
	return (Mix64(key) ^ uint64(index)) + 1
}

// Uniquify rewrites keys in place with UniqueKey so a queue that merges equal
// keys still receives len(keys) distinct entries. Indices are independent;
// every index is written by exactly one worker.
func Uniquify(r parallel.Runner, keys []uint64) error {
	return r.For(0, len(keys), func(i int) {
		keys[i] = UniqueKey(keys[i], i)
	})
}
