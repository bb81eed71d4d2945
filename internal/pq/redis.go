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
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sortedSetClient is the subset of the go-redis client the queue uses.
// *redis.Client satisfies it.
type sortedSetClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZPopMin(ctx context.Context, key string, count ...int64) *redis.ZSliceCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const (
	redisDialTimeout = 5 * time.Second
	// digits in math.MaxUint64
	memberDigits = 20
)

// RedisQueue keeps the queue in a Redis sorted set. Every member has score 0
// and is encoded as zero-padded "key:value", so Redis' lexicographic ordering
// of equal-score members is numeric key order; ZPOPMIN is delete-min.
// Float scores are not used because they cannot hold 64-bit keys exactly.
type RedisQueue struct {
	client sortedSetClient
	closer func() error
	key    string
	ctx    context.Context
	logger *zap.Logger

	errMu    sync.Mutex
	firstErr error
	errCount atomic.Int64
}

// DialRedis connects to addr and verifies the server answers.
func DialRedis(addr, key string, logger *zap.Logger) (*RedisQueue, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: redis %s: %w", ErrBackendUnavailable, addr, err)
	}
	q := newRedisQueue(c, key, logger)
	q.closer = c.Close
	return q, nil
}

func newRedisQueue(c sortedSetClient, key string, logger *zap.Logger) *RedisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		client: c,
		key:    key,
		ctx:    context.Background(),
		logger: logger.With(zap.String("backend", string(KindRedis)), zap.String("set", key)),
	}
}

func encodeMember(key, value uint64) string {
	buf := make([]byte, 0, 2*memberDigits+1)
	buf = appendPadded(buf, key)
	buf = append(buf, ':')
	buf = appendPadded(buf, value)
	return string(buf)
}

func appendPadded(buf []byte, v uint64) []byte {
	var tmp [memberDigits]byte
	digits := strconv.AppendUint(tmp[:0], v, 10)
	for i := len(digits); i < memberDigits; i++ {
		buf = append(buf, '0')
	}
	return append(buf, digits...)
}

func decodeMember(m string) (key, value uint64, err error) {
	if len(m) != 2*memberDigits+1 || m[memberDigits] != ':' {
		return 0, 0, fmt.Errorf("pq: malformed redis member %q", m)
	}
	if key, err = strconv.ParseUint(m[:memberDigits], 10, 64); err != nil {
		return 0, 0, err
	}
	if value, err = strconv.ParseUint(m[memberDigits+1:], 10, 64); err != nil {
		return 0, 0, err
	}
	return key, value, nil
}

func (q *RedisQueue) Insert(key, value uint64) {
	err := q.client.ZAdd(q.ctx, q.key, redis.Z{Score: 0, Member: encodeMember(key, value)}).Err()
	if err != nil {
		q.fail("zadd", err)
	}
}

func (q *RedisQueue) DeleteMin() (uint64, bool) {
	zs, err := q.client.ZPopMin(q.ctx, q.key, 1).Result()
	if err != nil {
		q.fail("zpopmin", err)
		return 0, false
	}
	if len(zs) == 0 {
		return 0, false
	}
	m, ok := zs[0].Member.(string)
	if !ok {
		q.fail("zpopmin", fmt.Errorf("pq: unexpected member type %T", zs[0].Member))
		return 0, false
	}
	_, value, err := decodeMember(m)
	if err != nil {
		q.fail("decode", err)
		return 0, false
	}
	return value, true
}

func (q *RedisQueue) Len() int {
	n, err := q.client.ZCard(q.ctx, q.key).Result()
	if err != nil {
		q.fail("zcard", err)
		return 0
	}
	return int(n)
}

// Err returns the first operation error, if any.
func (q *RedisQueue) Err() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	return q.firstErr
}

// Errors returns how many operations failed.
func (q *RedisQueue) Errors() int64 { return q.errCount.Load() }

func (q *RedisQueue) fail(op string, err error) {
	if q.errCount.Add(1) > 1 {
		return
	}
	q.errMu.Lock()
	q.firstErr = fmt.Errorf("redis %s: %w", op, err)
	q.errMu.Unlock()
	q.logger.Error("redis operation failed", zap.String("op", op), zap.Error(err))
}

// Close deletes the sorted set and releases the connection.
func (q *RedisQueue) Close() error {
	err := q.client.Del(q.ctx, q.key).Err()
	if q.closer != nil {
		err = errors.Join(err, q.closer())
	}
	return err
}
