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

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunPrintsReport(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-ops", "2000", "4"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 4, stdout.String())
	require.Equal(t, "Benchmark: TOTAL_OPS=2000, NUM_THREADS=4", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "\tInsert took "), lines[1])
	require.True(t, strings.HasPrefix(lines[2], "\tDeleteMin took "), lines[2])
	require.Equal(t, "success", lines[3])
}

func TestRunFlagsAfterThreadCount(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-ops", "500", "2", "-verify", "-teardown", "-backend", "skiplist"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	require.Contains(t, stdout.String(), "\tVerify ok: returned=500")
	require.Contains(t, stdout.String(), "\tgc=default")
}

func TestRunUsageErrors(t *testing.T) {
	cases := map[string][]string{
		"no args":       {},
		"not a number":  {"four"},
		"zero threads":  {"0"},
		"negative":      {"-3"},
		"extra args":    {"2", "3"},
		"unknown flag":  {"-nope", "2"},
		"bad backend":   {"-backend", "btree", "2"},
		"bad log level": {"-log_level", "loud", "2"},
		"zero max key":  {"-max_key", "0", "2"},
		"negative ops":  {"-ops", "-1", "2"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			require.Equal(t, exitUsage, run(args, &stdout, &stderr))
			require.Empty(t, stdout.String())
			require.NotEmpty(t, stderr.String())
		})
	}
}

func TestRunBackendUnavailable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-ops", "10", "-backend", "redis", "-redis_addr", "127.0.0.1:1", "1"}, &stdout, &stderr)
	require.Equal(t, exitFailure, code)
	require.Contains(t, stderr.String(), "backend unavailable")
	require.NotContains(t, stdout.String(), "success")
}
