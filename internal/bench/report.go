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

package bench

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"pqbench/internal/gc"
)

// Phase names a timed segment of a run.
type Phase string

const (
	PhaseInsert    Phase = "insert"
	PhaseDeleteMin Phase = "delete_min"
)

func (p Phase) label() string {
	switch p {
	case PhaseInsert:
		return "Insert"
	case PhaseDeleteMin:
		return "DeleteMin"
	default:
		return string(p)
	}
}

// Sample is the timing of one phase.
type Sample struct {
	Phase   Phase
	Ops     int
	Elapsed time.Duration
}

// Micros returns the elapsed time in whole microseconds.
func (s Sample) Micros() uint64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return uint64(s.Elapsed.Microseconds())
}

// Throughput returns operations per microsecond. It is computed from the
// nanosecond duration so sub-microsecond phases still get a value; ok is false
// when no time elapsed and the rate is undefined.
func (s Sample) Throughput() (opsPerMicro float64, ok bool) {
	if s.Elapsed <= 0 {
		return 0, false
	}
	return float64(s.Ops) / (float64(s.Elapsed.Nanoseconds()) / 1e3), true
}

func (s Sample) String() string {
	rate := "n/a"
	if tp, ok := s.Throughput(); ok {
		rate = strconv.FormatFloat(tp, 'g', 6, 64)
	}
	return fmt.Sprintf("%s took %d us, throughput = %s ops/us", s.Phase.label(), s.Micros(), rate)
}

// Verification is the outcome of checking delete-min results. Order is only
// meaningful for strict queues; relaxed backends are expected to report
// inversions.
type Verification struct {
	Returned   int // DeleteMin calls that returned a value
	Underflows int // DeleteMin calls that found the queue empty

	// Inversions counts consecutive results within one worker where the
	// later value was smaller. No inserts overlap the drain, so a strict
	// queue never produces one.
	Inversions int

	Missing    int // generated keys that never came back
	Unexpected int // returned values that were never inserted
}

// OK reports whether every inserted key came back once, in order.
func (v Verification) OK() bool {
	return v.Underflows == 0 && v.Inversions == 0 && v.Missing == 0 && v.Unexpected == 0
}

func (v Verification) String() string {
	status := "ok"
	if !v.OK() {
		status = "FAILED"
	}
	return fmt.Sprintf("Verify %s: returned=%d underflows=%d inversions=%d missing=%d unexpected=%d",
		status, v.Returned, v.Underflows, v.Inversions, v.Missing, v.Unexpected)
}

// Report collects everything a run measured.
type Report struct {
	TotalOps  int
	Workers   int
	Insert    Sample
	DeleteMin Sample

	Verification *Verification // nil unless Config.Verify
	GC           *gc.Stats     // nil unless the run was torn down
}

// Print writes the phase lines in the harness' stdout format.
func (r Report) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "\t%s\n\t%s\n", r.Insert, r.DeleteMin); err != nil {
		return err
	}
	if r.Verification != nil {
		if _, err := fmt.Fprintf(w, "\t%s\n", r.Verification); err != nil {
			return err
		}
	}
	if r.GC != nil {
		if _, err := fmt.Fprintf(w, "\t%s\n", r.GC); err != nil {
			return err
		}
	}
	return nil
}

func printHeader(w io.Writer, totalOps, workers int) {
	fmt.Fprintf(w, "Benchmark: TOTAL_OPS=%d, NUM_THREADS=%d\n", totalOps, workers)
}
