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

// Command pqbench measures the insert and delete-min throughput of a
// concurrent priority queue.
//
//	pqbench [flags] <threads>
//
// With no flags it runs the stock workload: 100M unique random keys inserted
// into the heap backend by <threads> workers, then drained by the same number
// of workers. Keys are generated before the clock starts; only the two queue
// phases are timed. The report goes to stdout, diagnostics to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pqbench/internal/bench"
	"pqbench/internal/gc"
	"pqbench/internal/pq"
	"pqbench/internal/telemetry"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	def := bench.DefaultConfig()

	fs := flag.NewFlagSet("pqbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: pqbench [flags] <threads>")
		fs.PrintDefaults()
	}
	totalOps := fs.Int("ops", def.TotalOps, "Total operations per phase (keys inserted, then delete-min calls)")
	maxKey := fs.Uint64("max_key", def.MaxKey, "Inclusive upper bound of generated keys")
	unique := fs.Bool("unique", def.Unique, "Remap keys so they are pairwise distinct (protects queues that collapse duplicates)")
	backend := fs.String("backend", string(def.Backend), "Queue backend: "+kindList())
	capacityHint := fs.Int("capacity_hint", def.CapacityHint, "Capacity hint passed to the queue constructor")
	verify := fs.Bool("verify", false, "Record delete-min results and check them against the inserted keys (adds work inside the timed window)")
	teardown := fs.Bool("teardown", def.Teardown, "Destroy the queue after the run (reclamation cost is excluded from the timings either way)")
	pin := fs.Bool("pin", false, "Pin each worker to a CPU (Linux only)")
	gcOff := fs.Bool("gc_off", false, "Disable the Go garbage collector while the queue is live")
	redisAddr := fs.String("redis_addr", "127.0.0.1:6379", "Redis address for -backend=redis")
	redisKey := fs.String("redis_key", "pqbench", "Sorted set used by -backend=redis")
	metricsAddr := fs.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address during the run (e.g., :9090)")
	logLevel := fs.String("log_level", "warn", "Diagnostic log level (debug, info, warn, error)")

	workers, err := parseArgs(fs, args)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "pqbench:", err)
			fs.Usage()
		}
		return exitUsage
	}

	logger, err := newLogger(*logLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "pqbench:", err)
		return exitUsage
	}
	defer logger.Sync() //nolint:errcheck

	kind, err := pq.ParseKind(*backend)
	if err != nil {
		fmt.Fprintln(stderr, "pqbench:", err)
		return exitUsage
	}

	cfg := bench.Config{
		Workers:      workers,
		TotalOps:     *totalOps,
		MaxKey:       *maxKey,
		Unique:       *unique,
		CapacityHint: *capacityHint,
		Backend:      kind,
		Verify:       *verify,
		Teardown:     *teardown,
		PinCPUs:      *pin,
		GCMode:       gc.ModeDefault,
		RedisAddr:    *redisAddr,
		RedisKey:     *redisKey,
	}
	if *gcOff {
		cfg.GCMode = gc.ModeDisabled
	}

	var rec *telemetry.Recorder
	if *metricsAddr != "" {
		rec = telemetry.NewRecorder()
		srv, err := rec.Serve(*metricsAddr, logger)
		if err != nil {
			logger.Error("metrics endpoint", zap.String("addr", *metricsAddr), zap.Error(err))
			return exitFailure
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	d, err := bench.New(cfg,
		bench.WithLogger(logger),
		bench.WithRecorder(rec),
		bench.WithOutput(stdout))
	if err != nil {
		fmt.Fprintln(stderr, "pqbench:", err)
		return exitUsage
	}

	report, err := d.Run()
	if err != nil {
		logger.Error("benchmark failed", zap.Error(err))
		fmt.Fprintln(stderr, "pqbench:", err)
		return exitFailure
	}
	if err := report.Print(stdout); err != nil {
		logger.Error("writing report", zap.Error(err))
		return exitFailure
	}
	fmt.Fprintln(stdout, "success")
	return exitOK
}

// parseArgs accepts flags both before and after the positional thread count.
func parseArgs(fs *flag.FlagSet, args []string) (int, error) {
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return 0, errors.New("missing thread count")
	}
	workers, err := strconv.Atoi(rest[0])
	if err != nil || workers < 1 || workers > math.MaxInt32 {
		return 0, fmt.Errorf("thread count must be a positive integer, got %q", rest[0])
	}
	if err := fs.Parse(rest[1:]); err != nil {
		return 0, err
	}
	if fs.NArg() > 0 {
		return 0, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return workers, nil
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.ErrorOutput(zapcore.AddSync(w))).Named("pqbench"), nil
}

func kindList() string {
	names := make([]string, 0, len(pq.Kinds()))
	for _, k := range pq.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
