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

package telemetry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObservePhase(t *testing.T) {
	r := NewRecorder()
	r.ObservePhase("insert", 1000, 2*time.Millisecond, 0.5, true)
	r.ObservePhase("insert", 1000, 4*time.Millisecond, 0.25, true)
	r.ObservePhase("delete_min", 1000, 0, 0, false)

	require.Equal(t, 2000.0, testutil.ToFloat64(r.phaseOps.WithLabelValues("insert")))
	require.Equal(t, 0.004, testutil.ToFloat64(r.phaseDuration.WithLabelValues("insert")), "duration gauge keeps the latest run")
	require.Equal(t, 0.25, testutil.ToFloat64(r.phaseThroughput.WithLabelValues("insert")))

	require.Equal(t, 1000.0, testutil.ToFloat64(r.phaseOps.WithLabelValues("delete_min")))
	n, err := testutil.GatherAndCount(r.Registry(), "pqbench_phase_throughput_ops_per_us")
	require.NoError(t, err)
	require.Equal(t, 1, n, "undefined throughput leaves the delete_min series unset")
}

func TestCountersAndRegistryIsolation(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.ObserveUnderflows(3)
	a.ObserveUnderflows(0)
	a.IncRuns()

	require.Equal(t, 3.0, testutil.ToFloat64(a.underflows))
	require.Equal(t, 1.0, testutil.ToFloat64(a.runs))
	require.Equal(t, 0.0, testutil.ToFloat64(b.runs))

	n, err := testutil.GatherAndCount(a.Registry(), "pqbench_runs_total", "pqbench_delete_min_underflows_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObservePhase("insert", 1, time.Second, 1, true)
	r.ObserveUnderflows(1)
	r.IncRuns()
	require.Nil(t, r.Registry())
}

func TestServeExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.IncRuns()

	srv, err := r.Serve("127.0.0.1:0", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "pqbench_runs_total 1"), string(body))
}

func TestServeBadAddr(t *testing.T) {
	_, err := NewRecorder().Serve("not-an-address", nil)
	require.Error(t, err)
}
