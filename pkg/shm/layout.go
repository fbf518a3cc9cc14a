/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"fmt"
	"math"
	"unsafe"
)

// Validity tags written on create and checked on open.
const (
	poolFlag  uint32 = 0xa1a20304
	queueFlag uint32 = 0xa1a21314
)

// regionAlign is the alignment the region base needs for the header words.
const regionAlign = 8

// poolHeader mirrors the first bytes of a pool region.
//
//	elemsize 4 | count 4 | useCount 4 | flag 4 | datapos 4 | lock 4 | first 4 | opens 4
type poolHeader struct {
	elemsize int32
	count    int32
	useCount int32
	flag     uint32
	datapos  int32
	lock     uint32
	first    int32
	opens    uint32
}

// queueHeader mirrors the first bytes of a queue region.
//
//	size 8 | lock 4 | flag 4 | readpos 4 | writepos 4 | opens 4 | reserved 4
type queueHeader struct {
	size     uint64
	lock     uint32
	flag     uint32
	readpos  int32
	writepos int32
	opens    uint32
	_        uint32
}

const (
	poolHeaderSize  = int(unsafe.Sizeof(poolHeader{}))
	queueHeaderSize = int(unsafe.Sizeof(queueHeader{}))
	metaEntrySize   = 4
	recordHeaderLen = 4
)

// State is the lifecycle of a structure embedded in a region.
type State int

const (
	// StateUninitialized means the region carries no valid tag.
	StateUninitialized State = iota
	// StateCreated means the creator initialised the region and nobody opened it yet.
	StateCreated
	// StateOpened means at least one participant opened the region.
	StateOpened
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func lifecycle(flag, want, opens uint32) State {
	switch {
	case flag != want:
		return StateUninitialized
	case opens == 0:
		return StateCreated
	}
	return StateOpened
}

// normalizeAlign maps align <= 1 to 1 and rejects non powers of two.
func normalizeAlign(align int) (int, error) {
	if align <= 1 {
		return 1, nil
	}
	if align&(align-1) != 0 || align > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAlignment, align)
	}
	return align, nil
}

// alignUp rounds size up to a multiple of align, which is a power of two.
func alignUp(size, align int64) int64 {
	return (size + align - 1) &^ (align - 1)
}

func baseAligned(region []byte) bool {
	return uintptr(unsafe.Pointer(unsafe.SliceData(region)))%regionAlign == 0
}
