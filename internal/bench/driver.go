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

// Package bench drives one benchmark run: set up the queue, generate keys
// outside the timed window, then time a parallel insert phase followed by a
// parallel delete-min phase.
//
// A Driver is a linear state machine:
//
//	Uninitialized -> QueueReady -> KeysGenerated -> InsertTimed -> DeleteTimed -> TornDown
//
// Each step is only legal from the state before it. The queue handle belongs
// to the Driver, so independent drivers can run side by side.
package bench

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"pqbench/internal/gc"
	"pqbench/internal/pq"
	"pqbench/internal/telemetry"
	"pqbench/pkg/keygen"
	"pqbench/pkg/parallel"
)

var (
	// ErrBadTransition is returned when a step is invoked out of order.
	ErrBadTransition = errors.New("bench: invalid state transition")

	// ErrQueueSetup is returned when the queue cannot be constructed.
	ErrQueueSetup = errors.New("bench: queue setup failed")

	// ErrQueueFailed is returned when the queue reports a runtime failure
	// during a timed phase. The phase's numbers are not trustworthy.
	ErrQueueFailed = errors.New("bench: queue operation failed")
)

type State int

const (
	StateUninitialized State = iota
	StateQueueReady
	StateKeysGenerated
	StateInsertTimed
	StateDeleteTimed
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateQueueReady:
		return "queue_ready"
	case StateKeysGenerated:
		return "keys_generated"
	case StateInsertTimed:
		return "insert_timed"
	case StateDeleteTimed:
		return "delete_timed"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option customises a Driver.
type Option func(*Driver)

func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithQueueFactory replaces the backend selected by Config.Backend.
func WithQueueFactory(f pq.Factory) Option {
	return func(d *Driver) { d.factory = f }
}

func WithRecorder(r *telemetry.Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithGenerator fixes the key generator, and with it the base seed.
func WithGenerator(g *keygen.Generator) Option {
	return func(d *Driver) { d.gen = g }
}

// WithOutput sets where the configuration line is printed (default: nowhere).
func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

type Driver struct {
	cfg      Config
	runner   parallel.Runner
	logger   *zap.Logger
	factory  pq.Factory
	recorder *telemetry.Recorder
	gen      *keygen.Generator
	out      io.Writer

	state  State
	gcSub  *gc.Subsystem
	queue  pq.Queue
	keys   []uint64
	report Report
}

// New validates cfg and returns a driver in StateUninitialized.
func New(cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:    cfg,
		runner: parallel.Runner{Workers: cfg.Workers, PinCPUs: cfg.PinCPUs},
		logger: zap.NewNop(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.factory == nil {
		d.factory = pq.NewFactory(cfg.Backend, pq.Options{
			RedisAddr: cfg.RedisAddr,
			RedisKey:  cfg.RedisKey,
			Logger:    d.logger,
		})
	}
	d.report = Report{TotalOps: cfg.TotalOps, Workers: cfg.Workers}
	return d, nil
}

func (d *Driver) State() State { return d.state }

// Keys returns the generated key sequence. The slice is owned by the driver.
func (d *Driver) Keys() []uint64 { return d.keys }

func (d *Driver) advance(from, to State) error {
	if d.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrBadTransition, from, to, d.state)
	}
	return nil
}

// Setup announces the configuration, acquires the GC subsystem and then
// constructs the queue.
func (d *Driver) Setup() error {
	if err := d.advance(StateUninitialized, StateQueueReady); err != nil {
		return err
	}
	printHeader(d.out, d.cfg.TotalOps, d.cfg.Workers)

	d.gcSub = gc.Init(d.cfg.GCMode)
	q, err := d.factory(d.cfg.CapacityHint)
	if err != nil {
		d.gcSub.Teardown()
		d.gcSub = nil
		return fmt.Errorf("%w: %w", ErrQueueSetup, err)
	}
	d.queue = q
	d.state = StateQueueReady
	d.logger.Debug("queue ready",
		zap.String("backend", string(d.cfg.Backend)),
		zap.Int("capacity_hint", d.cfg.CapacityHint),
		zap.Stringer("gc_mode", d.gcSub.Mode()))
	return nil
}

// GenerateKeys fills the key sequence and, when configured, makes it unique.
// Neither step is timed.
func (d *Driver) GenerateKeys() error {
	if err := d.advance(StateQueueReady, StateKeysGenerated); err != nil {
		return err
	}
	if d.gen == nil {
		g, err := keygen.NewGenerator()
		if err != nil {
			return fmt.Errorf("bench: seeding key generator: %w", err)
		}
		d.gen = g
	}
	start := time.Now()
	keys, err := d.gen.Generate(d.runner, d.cfg.TotalOps, d.cfg.MaxKey)
	if err != nil {
		return fmt.Errorf("bench: generating keys: %w", err)
	}
	if d.cfg.Unique {
		if err := keygen.Uniquify(d.runner, keys); err != nil {
			return fmt.Errorf("bench: uniquifying keys: %w", err)
		}
	}
	d.keys = keys
	d.state = StateKeysGenerated
	d.logger.Debug("keys generated",
		zap.Int("n", len(keys)),
		zap.Uint64("base_seed", d.gen.BaseSeed()),
		zap.Bool("unique", d.cfg.Unique),
		zap.Duration("took", time.Since(start)))
	return nil
}

// TimeInsert inserts (key, key) for every generated key across all workers.
// Only the parallel section is inside the timed window.
func (d *Driver) TimeInsert() (Sample, error) {
	if err := d.advance(StateKeysGenerated, StateInsertTimed); err != nil {
		return Sample{}, err
	}
	q, keys := d.queue, d.keys

	start := time.Now()
	err := d.runner.For(0, len(keys), func(i int) {
		k := keys[i]
		q.Insert(k, k)
	})
	elapsed := time.Since(start)
	if err != nil {
		return Sample{}, fmt.Errorf("bench: insert phase: %w", err)
	}

	s := Sample{Phase: PhaseInsert, Ops: len(keys), Elapsed: elapsed}
	if err := d.checkQueue(); err != nil {
		return s, err
	}
	d.observe(s)
	d.report.Insert = s
	d.state = StateInsertTimed
	return s, nil
}

// TimeDeleteMin issues one DeleteMin per key slot across all workers. The
// returned values are discarded unless Config.Verify is set.
func (d *Driver) TimeDeleteMin() (Sample, error) {
	if err := d.advance(StateInsertTimed, StateDeleteTimed); err != nil {
		return Sample{}, err
	}
	q, n := d.queue, len(d.keys)

	var (
		logs    []*drainLog
		elapsed time.Duration
		err     error
	)
	if d.cfg.Verify {
		logs = make([]*drainLog, d.cfg.Workers)
		perWorker := n/d.cfg.Workers + n%d.cfg.Workers
		newLog := func(worker int) *drainLog {
			l := newDrainLog(perWorker)
			logs[worker] = l
			return l
		}
		start := time.Now()
		err = parallel.ForEach(d.runner, 0, n, newLog, func(l *drainLog, _ int) {
			l.record(q.DeleteMin())
		})
		elapsed = time.Since(start)
	} else {
		start := time.Now()
		err = d.runner.For(0, n, func(int) {
			q.DeleteMin()
		})
		elapsed = time.Since(start)
	}
	if err != nil {
		return Sample{}, fmt.Errorf("bench: delete-min phase: %w", err)
	}

	s := Sample{Phase: PhaseDeleteMin, Ops: n, Elapsed: elapsed}
	if err := d.checkQueue(); err != nil {
		return s, err
	}
	d.observe(s)
	d.report.DeleteMin = s

	if d.cfg.Verify {
		v := verify(d.keys, logs)
		d.report.Verification = &v
		d.recorder.ObserveUnderflows(int64(v.Underflows))
		fields := []zap.Field{
			zap.Int("returned", v.Returned),
			zap.Int("underflows", v.Underflows),
			zap.Int("inversions", v.Inversions),
			zap.Int("missing", v.Missing),
			zap.Int("unexpected", v.Unexpected),
		}
		if v.OK() {
			d.logger.Info("delete-min results verified", fields...)
		} else {
			d.logger.Warn("delete-min results do not match inserted keys", fields...)
		}
	}
	d.state = StateDeleteTimed
	return s, nil
}

// Teardown destroys the queue and releases the GC subsystem.
func (d *Driver) Teardown() error {
	if err := d.advance(StateDeleteTimed, StateTornDown); err != nil {
		return err
	}
	err := d.release()
	d.state = StateTornDown
	return err
}

// Close releases whatever the driver still holds, from any state. Run uses it
// on failure; it is a no-op once the driver is torn down.
func (d *Driver) Close() error {
	if d.state == StateTornDown {
		return nil
	}
	err := d.release()
	d.state = StateTornDown
	return err
}

func (d *Driver) release() error {
	var err error
	if d.queue != nil {
		err = d.queue.Close()
		d.queue = nil
	}
	if d.gcSub != nil {
		stats := d.gcSub.Teardown()
		d.report.GC = &stats
		d.gcSub = nil
	}
	d.keys = nil
	return err
}

// Run executes every step in order. The queue is only torn down when
// Config.Teardown is set; otherwise it is left for process exit.
func (d *Driver) Run() (Report, error) {
	steps := []func() error{
		d.Setup,
		d.GenerateKeys,
		func() error {
			_, err := d.TimeInsert()
			return err
		},
		func() error {
			_, err := d.TimeDeleteMin()
			return err
		},
	}
	if d.cfg.Teardown {
		steps = append(steps, d.Teardown)
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return d.report, errors.Join(err, d.Close())
		}
	}
	d.recorder.IncRuns()
	return d.report, nil
}

func (d *Driver) checkQueue() error {
	f, ok := d.queue.(pq.Failer)
	if !ok {
		return nil
	}
	if err := f.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrQueueFailed, err)
	}
	return nil
}

func (d *Driver) observe(s Sample) {
	tp, ok := s.Throughput()
	d.recorder.ObservePhase(string(s.Phase), s.Ops, s.Elapsed, tp, ok)
	d.logger.Info("phase complete",
		zap.String("phase", string(s.Phase)),
		zap.Int("ops", s.Ops),
		zap.Duration("elapsed", s.Elapsed),
		zap.Float64("ops_per_us", tp))
}
