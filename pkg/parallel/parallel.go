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

// Package parallel provides the "run across N workers and wait" primitive used
// by every phase of the benchmark. An index range is split into contiguous
// chunks, one per worker, each chunk runs on its own goroutine, and the call
// returns only after every worker has been joined.
//
// Partitioning policy: with W workers over [start, end) each chunk holds
// (end-start)/W indices, except the last one which also absorbs the remainder,
// so the chunks cover the range exactly once without overlap.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

var (
	// ErrInvalidWorkers is returned when the worker count is below one.
	ErrInvalidWorkers = errors.New("parallel: worker count must be positive")

	// ErrInvalidRange is returned when end < start.
	ErrInvalidRange = errors.New("parallel: end must not be before start")

	// ErrWorkerStart is returned when a worker could not be brought up
	// (for example, CPU pinning failed). A benchmark run with fewer workers
	// than requested would report wrong numbers, so callers treat it as fatal.
	ErrWorkerStart = errors.New("parallel: worker could not be started")
)

// Chunk is the contiguous index range [Start, End) owned by one worker.
type Chunk struct {
	Worker int
	Start  int
	End    int
}

// Len returns the number of indices in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// WorkerPanicError reports a panic raised inside a worker. The panic is
// recovered so the remaining workers can still be joined.
type WorkerPanicError struct {
	Worker int
	Value  any
	Stack  []byte
}

func (e *WorkerPanicError) Error() string {
	return fmt.Sprintf("parallel: worker %d panicked: %v", e.Worker, e.Value)
}

// Partition splits [start, end) into exactly workers chunks.
func Partition(workers, start, end int) ([]Chunk, error) {
	if workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if end < start {
		return nil, ErrInvalidRange
	}
	per := (end - start) / workers
	chunks := make([]Chunk, workers)
	for i := 0; i < workers; i++ {
		s := start + i*per
		e := start + (i+1)*per
		if i == workers-1 {
			e = end
		}
		chunks[i] = Chunk{Worker: i, Start: s, End: e}
	}
	return chunks, nil
}

// Runner runs parallel sections with a fixed worker count. A new set of
// goroutines is created for every call and joined before it returns; there is
// no persistent pool.
type Runner struct {
	// Workers is the number of concurrently running workers per section.
	Workers int

	// PinCPUs locks each worker to an OS thread and binds that thread to
	// CPU (worker % NumCPU). Only supported on Linux.
	PinCPUs bool
}

// For invokes fn for every index in [start, end).
func (r Runner) For(start, end int, fn func(i int)) error {
	return ForEach(r, start, end, func(int) struct{} { return struct{}{} }, func(_ struct{}, i int) { fn(i) })
}

// ForChunks hands each worker its whole chunk instead of one index at a time.
func (r Runner) ForChunks(start, end int, fn func(c Chunk)) error {
	chunks, err := Partition(r.Workers, start, end)
	if err != nil {
		return err
	}
	return r.run(chunks, fn)
}

// For is shorthand for Runner{Workers: workers}.For.
func For(workers, start, end int, fn func(i int)) error {
	return Runner{Workers: workers}.For(start, end, fn)
}

// ForEach invokes fn for every index in [start, end), passing a per-worker
// context built by newCtx. newCtx runs once per worker, on that worker's
// goroutine, before the worker touches its first index, so state such as a
// random stream is created by its owner and never shared.
func ForEach[C any](r Runner, start, end int, newCtx func(worker int) C, fn func(ctx C, i int)) error {
	chunks, err := Partition(r.Workers, start, end)
	if err != nil {
		return err
	}
	return r.run(chunks, func(c Chunk) {
		ctx := newCtx(c.Worker)
		for i := c.Start; i < c.End; i++ {
			fn(ctx, i)
		}
	})
}

func (r Runner) run(chunks []Chunk, body func(c Chunk)) error {
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	wg.Add(len(chunks))
	for _, c := range chunks {
		go func(c Chunk) {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					buf := make([]byte, 4<<10)
					buf = buf[:runtime.Stack(buf, false)]
					errs[c.Worker] = &WorkerPanicError{Worker: c.Worker, Value: v, Stack: buf}
				}
			}()
			if r.PinCPUs {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				if err := pinToCPU(c.Worker % runtime.NumCPU()); err != nil {
					errs[c.Worker] = fmt.Errorf("%w: worker %d: %w", ErrWorkerStart, c.Worker, err)
					return
				}
			}
			body(c)
		}(c)
	}
	wg.Wait()

	return errors.Join(errs...)
}
