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

// Command harness sweeps the benchmark across backends and thread counts and
// prints one block per run plus a machine-readable Summary line, so results
// from several configurations can be compared or scraped by scripts.
//
//	go run ./benchmarks/harness -backends=heap,multiqueue -threads=1,4,16 -ops=2000000
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pqbench/internal/bench"
	"pqbench/internal/gc"
	"pqbench/internal/pq"
	"pqbench/pkg/keygen"
)

type sweepOptions struct {
	backends []pq.Kind
	threads  []int
	ops      int
	maxKey   uint64
	unique   bool
	verify   bool
	gcOff    bool
	seed     uint64 // 0 draws a fresh base seed per run
	shards   int
}

type sweepResult struct {
	backend   pq.Kind
	threads   int
	report    bench.Report
	baseSeed  uint64
	verifyErr bool
}

func main() {
	var (
		backendsStr = flag.String("backends", "heap,multiqueue,skiplist", "comma-separated backends to sweep")
		threadsStr  = flag.String("threads", "1,2,4,8", "comma-separated worker counts to sweep")
		ops         = flag.Int("ops", 1_000_000, "operations per phase")
		maxKey      = flag.Uint64("max_key", ^uint64(0), "inclusive upper bound of generated keys")
		unique      = flag.Bool("unique", true, "apply the uniqueness transform")
		verify      = flag.Bool("verify", false, "check delete-min results after each run")
		gcOff       = flag.Bool("gc_off", false, "disable the collector while each queue is live")
		seed        = flag.Uint64("seed", 0, "base seed for key generation (0 = random per run)")
		shards      = flag.Int("shards", 0, "multiqueue shard count (0 = 4*GOMAXPROCS)")
		pprofOn     = flag.Bool("pprof", false, "enable pprof on localhost:6060")
	)
	flag.Parse()

	if *pprofOn {
		go func() {
			log.Println("pprof listening on localhost:6060")
			_ = http.ListenAndServe("localhost:6060", nil)
		}()
	}

	opts := sweepOptions{ops: *ops, maxKey: *maxKey, unique: *unique, verify: *verify, gcOff: *gcOff, seed: *seed, shards: *shards}
	var err error
	if opts.backends, err = parseBackends(*backendsStr); err != nil {
		log.Fatalf("harness: %v", err)
	}
	if opts.threads, err = parseThreads(*threadsStr); err != nil {
		log.Fatalf("harness: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if _, err := runSweep(opts, os.Stdout, logger); err != nil {
		log.Fatalf("harness: %v", err)
	}
}

func runSweep(opts sweepOptions, w io.Writer, logger *zap.Logger) ([]sweepResult, error) {
	var results []sweepResult
	for _, backend := range opts.backends {
		for _, threads := range opts.threads {
			res, err := runOne(opts, backend, threads, logger)
			if err != nil {
				return results, fmt.Errorf("%s/%d: %w", backend, threads, err)
			}
			printResult(w, opts, res)
			results = append(results, res)
		}
	}
	printTable(w, results)
	return results, nil
}

func runOne(opts sweepOptions, backend pq.Kind, threads int, logger *zap.Logger) (sweepResult, error) {
	cfg := bench.DefaultConfig()
	cfg.Workers = threads
	cfg.TotalOps = opts.ops
	cfg.MaxKey = opts.maxKey
	cfg.Unique = opts.unique
	cfg.Verify = opts.verify
	cfg.Backend = backend
	// Every run frees its queue so the next one starts from a clean heap.
	cfg.Teardown = true
	if opts.gcOff {
		cfg.GCMode = gc.ModeDisabled
	}

	gen, err := newGenerator(opts.seed)
	if err != nil {
		return sweepResult{}, err
	}
	factory := pq.NewFactory(backend, pq.Options{Shards: opts.shards, Logger: logger})

	d, err := bench.New(cfg,
		bench.WithLogger(logger),
		bench.WithGenerator(gen),
		bench.WithQueueFactory(factory))
	if err != nil {
		return sweepResult{}, err
	}
	report, err := d.Run()
	if err != nil {
		return sweepResult{}, err
	}
	res := sweepResult{backend: backend, threads: threads, report: report, baseSeed: gen.BaseSeed()}
	if v := report.Verification; v != nil && !v.OK() {
		res.verifyErr = true
	}
	return res, nil
}

func newGenerator(seed uint64) (*keygen.Generator, error) {
	if seed != 0 {
		return keygen.NewGeneratorWithSeed(seed), nil
	}
	return keygen.NewGenerator()
}

func printResult(w io.Writer, opts sweepOptions, r sweepResult) {
	ins, del := r.report.Insert, r.report.DeleteMin
	fmt.Fprintf(w, "Backend: %s  Threads: %d  Ops: %s  Unique: %v\n", r.backend, r.threads, humanInt(int64(opts.ops)), opts.unique)
	fmt.Fprintf(w, "Insert: %sµs (%s ops/sec)  DeleteMin: %sµs (%s ops/sec)\n",
		formatMicros(ins.Elapsed), humanRate(opsPerSec(ins)), formatMicros(del.Elapsed), humanRate(opsPerSec(del)))
	if r.report.GC != nil {
		fmt.Fprintf(w, "Memory: %s\n", r.report.GC)
	}
	if v := r.report.Verification; v != nil {
		fmt.Fprintf(w, "%s\n", v)
	}
	insTP, _ := ins.Throughput()
	delTP, _ := del.Throughput()
	fmt.Fprintf(w, "Summary: backend=%s threads=%d ops=%d insert_ns=%d delete_min_ns=%d insert_ops_per_us=%.6g delete_min_ops_per_us=%.6g base_seed=%d verified=%v\n",
		r.backend, r.threads, opts.ops, ins.Elapsed.Nanoseconds(), del.Elapsed.Nanoseconds(), insTP, delTP, r.baseSeed, r.report.Verification != nil && !r.verifyErr)
}

func printTable(w io.Writer, results []sweepResult) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-12s %8s %14s %14s\n", "backend", "threads", "insert ops/us", "delmin ops/us")
	for _, r := range results {
		fmt.Fprintf(w, "%-12s %8d %14s %14s\n", r.backend, r.threads, rate(r.report.Insert), rate(r.report.DeleteMin))
	}
}

func rate(s bench.Sample) string {
	tp, ok := s.Throughput()
	if !ok {
		return "n/a"
	}
	return strconv.FormatFloat(tp, 'f', 3, 64)
}

func opsPerSec(s bench.Sample) float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Ops) / s.Elapsed.Seconds()
}

func parseBackends(s string) ([]pq.Kind, error) {
	var kinds []pq.Kind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := pq.ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, errors.New("no backends given")
	}
	return kinds, nil
}

func parseThreads(s string) ([]int, error) {
	var threads []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("bad thread count %q", part)
		}
		threads = append(threads, n)
	}
	if len(threads) == 0 {
		return nil, errors.New("no thread counts given")
	}
	return threads, nil
}

// formatMicros prints a duration in microseconds with adaptive precision
// to avoid clamped zeros for sub-microsecond durations.
func formatMicros(d time.Duration) string {
	us := float64(d) / 1e3
	if us < 1 {
		return fmt.Sprintf("%.3f", us)
	}
	if us < 100 {
		return fmt.Sprintf("%.1f", us)
	}
	return fmt.Sprintf("%.0f", us)
}

func humanInt(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := ""
	if strings.HasPrefix(s, "-") {
		neg = "-"
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i != 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return neg + string(out)
}

func humanRate(x float64) string {
	if x >= 1_000_000 {
		return fmt.Sprintf("%.1fM", x/1_000_000)
	}
	if x >= 1_000 {
		return fmt.Sprintf("%.1fk", x/1_000)
	}
	return fmt.Sprintf("%.0f", x)
}
