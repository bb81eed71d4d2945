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

// Package pq holds the concurrent priority queues the harness measures. The
// harness only relies on the Queue contract; the backends exist so the
// benchmark has something real to drive and can compare designs.
package pq

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrUnknownBackend is returned by Open for an unrecognised Kind.
	ErrUnknownBackend = errors.New("pq: unknown backend")

	// ErrBackendUnavailable is returned when a backend cannot be constructed,
	// e.g. the Redis server does not answer.
	ErrBackendUnavailable = errors.New("pq: backend unavailable")
)

// Queue is a concurrent min-priority queue of (key, value) pairs.
//
// Insert and DeleteMin must be safe for concurrent use; the harness performs
// no locking of its own around them. DeleteMin returns ok=false on an empty
// queue.
type Queue interface {
	Insert(key, value uint64)
	DeleteMin() (value uint64, ok bool)
	Len() int
	Close() error
}

// Failer is implemented by queues whose operations can fail at runtime
// (network backends). Err returns the first failure observed, if any.
type Failer interface {
	Err() error
}

// Factory constructs a queue given a capacity hint.
type Factory func(capacityHint int) (Queue, error)

// Kind selects a backend.
type Kind string

const (
	KindHeap       Kind = "heap"
	KindMultiQueue Kind = "multiqueue"
	KindSkipList   Kind = "skiplist"
	KindRedis      Kind = "redis"
)

// Kinds lists every supported backend.
func Kinds() []Kind {
	return []Kind{KindHeap, KindMultiQueue, KindSkipList, KindRedis}
}

// ParseKind maps a backend name to its Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Options carries backend-specific knobs. Zero values select defaults.
type Options struct {
	// Shards is the number of heaps in a MultiQueue (default 4*GOMAXPROCS).
	Shards int

	// RedisAddr is the host:port of the Redis server (default 127.0.0.1:6379).
	RedisAddr string

	// RedisKey names the sorted set backing the queue (default "pqbench").
	RedisKey string

	Logger *zap.Logger
}

func (o *Options) fillDefaults() {
	if o.RedisAddr == "" {
		o.RedisAddr = "127.0.0.1:6379"
	}
	if o.RedisKey == "" {
		o.RedisKey = "pqbench"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Open constructs a queue of the given kind.
func Open(kind Kind, capacityHint int, opts Options) (Queue, error) {
	opts.fillDefaults()
	switch kind {
	case KindHeap:
		return NewHeap(capacityHint), nil
	case KindMultiQueue:
		return NewMultiQueue(opts.Shards, capacityHint), nil
	case KindSkipList:
		return NewSkipList(), nil
	case KindRedis:
		q, err := DialRedis(opts.RedisAddr, opts.RedisKey, opts.Logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

// NewFactory binds kind and opts into a Factory.
func NewFactory(kind Kind, opts Options) Factory {
	return func(capacityHint int) (Queue, error) {
		return Open(kind, capacityHint, opts)
	}
}
