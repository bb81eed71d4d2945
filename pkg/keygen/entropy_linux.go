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

//go:build linux

package keygen

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// entropy64 reads eight bytes from the kernel random source.
func entropy64() (uint64, error) {
	var buf [8]byte
	for read := 0; read < len(buf); {
		n, err := unix.Getrandom(buf[read:], 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		read += n
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
