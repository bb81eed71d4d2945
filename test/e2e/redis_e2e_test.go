//go:build e2e

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

package e2e

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"pqbench/internal/bench"
	"pqbench/internal/pq"
	"pqbench/pkg/keygen"
)

const redisAddr = "127.0.0.1:6379"

func requireRedis(t *testing.T) *redis.Client {
	t.Helper()
	rc := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on %s: %v", redisAddr, err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

// TestRedisBackendDrainsInOrderE2E runs a verified benchmark against a real
// server and checks the sorted set is gone after teardown.
func TestRedisBackendDrainsInOrderE2E(t *testing.T) {
	rc := requireRedis(t)
	setKey := "pqbench-e2e"
	_ = rc.Del(context.Background(), setKey).Err()

	cfg := bench.DefaultConfig()
	cfg.Workers = 4
	cfg.TotalOps = 2000
	cfg.Backend = pq.KindRedis
	cfg.RedisAddr = redisAddr
	cfg.RedisKey = setKey
	cfg.Verify = true
	cfg.Teardown = true

	d, err := bench.New(cfg, bench.WithGenerator(keygen.NewGeneratorWithSeed(99)))
	require.NoError(t, err)
	report, err := d.Run()
	require.NoError(t, err)

	v := report.Verification
	require.NotNil(t, v)
	require.True(t, v.OK(), v.String())

	n, err := rc.Exists(context.Background(), setKey).Result()
	require.NoError(t, err)
	require.Zero(t, n, "teardown deletes the sorted set")
}

// TestRedisQueueDirectE2E drives the queue without the driver, including the
// full 64-bit key range that float scores could not represent.
func TestRedisQueueDirectE2E(t *testing.T) {
	requireRedis(t)
	q, err := pq.DialRedis(redisAddr, "pqbench-e2e-direct", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	keys := []uint64{1<<63 + 1, 1 << 63, ^uint64(0), 1, ^uint64(0) - 1}
	for _, k := range keys {
		q.Insert(k, k)
	}
	require.Equal(t, len(keys), q.Len())

	want := []uint64{1, 1 << 63, 1<<63 + 1, ^uint64(0) - 1, ^uint64(0)}
	for _, w := range want {
		got, ok := q.DeleteMin()
		require.True(t, ok)
		require.Equal(t, w, got)
	}
	_, ok := q.DeleteMin()
	require.False(t, ok)
	require.NoError(t, q.Err())
}
