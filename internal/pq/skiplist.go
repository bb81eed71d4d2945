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

import "github.com/zhangyunhao116/skipset"

// SkipListQueue is a lock-free priority queue on top of a concurrent skiplist
// set. The set keeps one copy of each key, so inserting an existing key is a
// no-op and the key doubles as the payload returned by DeleteMin.
type SkipListQueue struct {
	set *skipset.Uint64Set
}

func NewSkipList() *SkipListQueue {
	return &SkipListQueue{set: skipset.NewUint64()}
}

// Insert adds key. value is ignored; DeleteMin returns the key.
func (q *SkipListQueue) Insert(key, _ uint64) {
	q.set.Add(key)
}

// DeleteMin reads the head of the list and races to remove it; losing the
// race means another worker took that key, so it retries with the new head.
func (q *SkipListQueue) DeleteMin() (uint64, bool) {
	for {
		var head uint64
		found := false
		q.set.Range(func(v uint64) bool {
			head, found = v, true
			return false
		})
		if !found {
			return 0, false
		}
		if q.set.Remove(head) {
			return head, true
		}
	}
}

func (q *SkipListQueue) Len() int { return q.set.Len() }

func (q *SkipListQueue) Close() error {
	q.set = skipset.NewUint64()
	return nil
}
