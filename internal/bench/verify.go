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

import "slices"

// drainLog is one worker's record of its delete-min results.
type drainLog struct {
	values     []uint64
	underflows int
	inversions int
	last       uint64
}

func newDrainLog(capacity int) *drainLog {
	return &drainLog{values: make([]uint64, 0, capacity)}
}

func (l *drainLog) record(v uint64, ok bool) {
	if !ok {
		l.underflows++
		return
	}
	if len(l.values) > 0 && v < l.last {
		l.inversions++
	}
	l.last = v
	l.values = append(l.values, v)
}

// verify compares the drained values against the inserted keys as multisets.
func verify(inserted []uint64, logs []*drainLog) Verification {
	var v Verification
	var returned []uint64
	for _, l := range logs {
		if l == nil {
			continue
		}
		v.Underflows += l.underflows
		v.Inversions += l.inversions
		returned = append(returned, l.values...)
	}
	v.Returned = len(returned)

	want := slices.Clone(inserted)
	slices.Sort(want)
	slices.Sort(returned)

	i, j := 0, 0
	for i < len(want) && j < len(returned) {
		switch {
		case want[i] == returned[j]:
			i++
			j++
		case want[i] < returned[j]:
			v.Missing++
			i++
		default:
			v.Unexpected++
			j++
		}
	}
	v.Missing += len(want) - i
	v.Unexpected += len(returned) - j
	return v
}
