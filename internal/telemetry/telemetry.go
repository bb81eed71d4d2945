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

// Package telemetry exports benchmark results as Prometheus metrics.
//
// Each Recorder owns its registry instead of using the global default one, so
// several drivers (and tests) can run in one process without colliding
// registrations. A nil *Recorder is valid and records nothing.
package telemetry

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Recorder struct {
	reg *prometheus.Registry

	phaseDuration   *prometheus.GaugeVec
	phaseOps        *prometheus.CounterVec
	phaseThroughput *prometheus.GaugeVec
	underflows      prometheus.Counter
	runs            prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pqbench_phase_duration_seconds",
			Help: "Wall-clock duration of the most recent run of each timed phase",
		}, []string{"phase"}),
		phaseOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pqbench_phase_ops_total",
			Help: "Queue operations issued per phase across all runs",
		}, []string{"phase"}),
		phaseThroughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pqbench_phase_throughput_ops_per_us",
			Help: "Throughput of the most recent run of each timed phase, in operations per microsecond",
		}, []string{"phase"}),
		underflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pqbench_delete_min_underflows_total",
			Help: "DeleteMin calls that found the queue empty",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pqbench_runs_total",
			Help: "Completed benchmark runs",
		}),
	}
	r.reg.MustRegister(r.phaseDuration, r.phaseOps, r.phaseThroughput, r.underflows, r.runs)
	return r
}

// Registry exposes the private registry, e.g. for a caller-owned HTTP mux.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObservePhase records one timed phase. throughput is only set when defined.
func (r *Recorder) ObservePhase(phase string, ops int, elapsed time.Duration, throughput float64, ok bool) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(phase).Set(elapsed.Seconds())
	if ops > 0 {
		r.phaseOps.WithLabelValues(phase).Add(float64(ops))
	}
	if ok {
		r.phaseThroughput.WithLabelValues(phase).Set(throughput)
	}
}

func (r *Recorder) ObserveUnderflows(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.underflows.Add(float64(n))
}

func (r *Recorder) IncRuns() {
	if r == nil {
		return
	}
	r.runs.Inc()
}

// Serve exposes /metrics on addr in a background goroutine. The listener is
// bound before returning so address errors surface to the caller. Shut the
// returned server down to stop it.
func (r *Recorder) Serve(addr string, logger *zap.Logger) (*http.Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg}))
	server := &http.Server{Addr: ln.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint stopped", zap.String("addr", server.Addr), zap.Error(err))
		}
	}()
	logger.Info("metrics endpoint listening", zap.String("addr", server.Addr))
	return server, nil
}
