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

package pq

import (
	"container/heap"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
)

// shard is one lock-protected heap of a MultiQueue. top and size mirror the
// heap so DeleteMin can compare shards without taking their locks.
type shard struct {
	mu   sync.Mutex
	h    minHeap
	top  atomic.Uint64
	size atomic.Int64
	_    [64]byte // keep neighbouring shards off the same cache line
}

func (s *shard) publish() {
	s.size.Store(int64(len(s.h)))
	if len(s.h) > 0 {
		s.top.Store(s.h[0].key)
	}
}

// MultiQueue is a relaxed priority queue: c heaps, each with its own lock.
// Insert picks a random shard; DeleteMin samples two shards and pops from the
// one with the smaller minimum. Returned values are close to, but not always
// exactly, the global minimum.
type MultiQueue struct {
	shards []shard
}

// NewMultiQueue returns a MultiQueue with the given shard count
// (4*GOMAXPROCS when shards <= 0). capacityHint is spread over the shards.
func NewMultiQueue(shards, capacityHint int) *MultiQueue {
	if shards <= 0 {
		shards = 4 * runtime.GOMAXPROCS(0)
	}
	per := 0
	if capacityHint > 0 {
		per = (capacityHint + shards - 1) / shards
	}
	q := &MultiQueue{shards: make([]shard, shards)}
	for i := range q.shards {
		q.shards[i].h = make(minHeap, 0, per)
	}
	return q
}

// Shards returns the number of internal heaps.
func (q *MultiQueue) Shards() int { return len(q.shards) }

func (q *MultiQueue) Insert(key, value uint64) {
	s := &q.shards[rand.IntN(len(q.shards))]
	s.mu.Lock()
	heap.Push(&s.h, entry{key: key, value: value})
	s.publish()
	s.mu.Unlock()
}

func (q *MultiQueue) DeleteMin() (uint64, bool) {
	n := len(q.shards)
	// A handful of two-choice attempts; contention or a drained pair falls
	// through to the exhaustive scan below.
	for attempt := 0; attempt < 4; attempt++ {
		a, b := &q.shards[rand.IntN(n)], &q.shards[rand.IntN(n)]
		s := pickSmaller(a, b)
		if s == nil {
			break
		}
		if v, ok := s.tryPop(); ok {
			return v, true
		}
	}
	start := rand.IntN(n)
	for i := 0; i < n; i++ {
		s := &q.shards[(start+i)%n]
		if s.size.Load() == 0 {
			continue
		}
		if v, ok := s.pop(); ok {
			return v, true
		}
	}
	return 0, false
}

func pickSmaller(a, b *shard) *shard {
	aEmpty, bEmpty := a.size.Load() == 0, b.size.Load() == 0
	switch {
	case aEmpty && bEmpty:
		return nil
	case aEmpty:
		return b
	case bEmpty:
		return a
	case b.top.Load() < a.top.Load():
		return b
	default:
		return a
	}
}

// tryPop pops without waiting when the shard lock is busy.
func (s *shard) tryPop() (uint64, bool) {
	if !s.mu.TryLock() {
		return 0, false
	}
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *shard) pop() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *shard) popLocked() (uint64, bool) {
	if len(s.h) == 0 {
		return 0, false
	}
	e := heap.Pop(&s.h).(entry)
	s.publish()
	return e.value, true
}

func (q *MultiQueue) Len() int {
	var total int64
	for i := range q.shards {
		total += q.shards[i].size.Load()
	}
	return int(total)
}

func (q *MultiQueue) Close() error {
	for i := range q.shards {
		s := &q.shards[i]
		s.mu.Lock()
		s.h = nil
		s.publish()
		s.mu.Unlock()
	}
	return nil
}
