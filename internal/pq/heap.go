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
	"sync"
)

type entry struct {
	key   uint64
	value uint64
}

// minHeap implements heap.Interface ordered by key, then value.
type minHeap []entry

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].value < h[j].value
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// HeapQueue is a binary min-heap behind a single mutex. It is the strict,
// fully linearizable baseline the other backends are compared against.
type HeapQueue struct {
	mu sync.Mutex
	h  minHeap
}

// NewHeap returns an empty heap with room for capacityHint entries.
func NewHeap(capacityHint int) *HeapQueue {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &HeapQueue{h: make(minHeap, 0, capacityHint)}
}

func (q *HeapQueue) Insert(key, value uint64) {
	q.mu.Lock()
	heap.Push(&q.h, entry{key: key, value: value})
	q.mu.Unlock()
}

func (q *HeapQueue) DeleteMin() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return 0, false
	}
	e := heap.Pop(&q.h).(entry)
	return e.value, true
}

func (q *HeapQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Close drops the backing storage.
func (q *HeapQueue) Close() error {
	q.mu.Lock()
	q.h = nil
	q.mu.Unlock()
	return nil
}
