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
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"testing"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeSortedSet is an in-process stand-in for the handful of sorted-set
// commands RedisQueue issues. All members share score 0, so ordering is
// lexicographic, as on a real server.
type fakeSortedSet struct {
	mu        sync.Mutex
	sets      map[string][]string
	returnErr error
	deleted   []string
}

func newFakeSortedSet() *fakeSortedSet {
	return &fakeSortedSet{sets: map[string][]string{}}
}

func (f *fakeSortedSet) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.returnErr)
}

func (f *fakeSortedSet) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	if f.returnErr != nil {
		return redis.NewIntResult(0, f.returnErr)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	added := int64(0)
	for _, z := range members {
		m := z.Member.(string)
		s := f.sets[key]
		i, found := slices.BinarySearch(s, m)
		if found {
			continue
		}
		f.sets[key] = slices.Insert(s, i, m)
		added++
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeSortedSet) ZPopMin(ctx context.Context, key string, count ...int64) *redis.ZSliceCmd {
	if f.returnErr != nil {
		return redis.NewZSliceCmdResult(nil, f.returnErr)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(1)
	if len(count) > 0 {
		n = count[0]
	}
	s := f.sets[key]
	if int64(len(s)) < n {
		n = int64(len(s))
	}
	out := make([]redis.Z, 0, n)
	for _, m := range s[:n] {
		out = append(out, redis.Z{Score: 0, Member: m})
	}
	f.sets[key] = s[n:]
	return redis.NewZSliceCmdResult(out, nil)
}

func (f *fakeSortedSet) ZCard(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.sets[key])), f.returnErr)
}

func (f *fakeSortedSet) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.sets[k]; ok {
			n++
		}
		delete(f.sets, k)
		f.deleted = append(f.deleted, k)
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisMember_EncodingPreservesNumericOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	keys := []uint64{0, 1, 9, 10, 99, 100, math.MaxUint64 - 1, math.MaxUint64}
	for i := 0; i < 1000; i++ {
		keys = append(keys, rng.Uint64()>>uint(rng.IntN(64)))
	}

	members := make([]string, len(keys))
	for i, k := range keys {
		members[i] = encodeMember(k, uint64(i))
		require.Len(t, members[i], 2*memberDigits+1)

		gotKey, gotValue, err := decodeMember(members[i])
		require.NoError(t, err)
		require.Equal(t, k, gotKey)
		require.Equal(t, uint64(i), gotValue)
	}

	slices.Sort(members)
	var prev uint64
	for i, m := range members {
		k, _, err := decodeMember(m)
		require.NoError(t, err)
		if i > 0 {
			require.GreaterOrEqual(t, k, prev)
		}
		prev = k
	}
}

func TestRedisMember_DecodeRejectsMalformed(t *testing.T) {
	for _, m := range []string{"", "12:34", strconv.Itoa(42), encodeMember(1, 2)[:40] + "x"} {
		_, _, err := decodeMember(m)
		require.Error(t, err, "member %q", m)
	}
}

func TestRedisQueue_StickyError(t *testing.T) {
	fake := newFakeSortedSet()
	q := newRedisQueue(fake, "k", nil)
	q.Insert(1, 1)
	require.NoError(t, q.Err())

	boom := errors.New("connection reset")
	fake.returnErr = boom
	q.Insert(2, 2)
	_, ok := q.DeleteMin()
	require.False(t, ok)

	require.ErrorIs(t, q.Err(), boom)
	require.Contains(t, q.Err().Error(), "zadd", "first failure wins")
	require.Equal(t, int64(2), q.Errors())

	var f Failer = q
	require.Error(t, f.Err())
}

func TestRedisQueue_CloseDeletesSet(t *testing.T) {
	fake := newFakeSortedSet()
	q := newRedisQueue(fake, "bench:set", nil)
	q.Insert(5, 5)
	require.NoError(t, q.Close())
	require.Equal(t, []string{"bench:set"}, fake.deleted)
	require.Empty(t, fake.sets)
}
