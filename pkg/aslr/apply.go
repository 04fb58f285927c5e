// Copyright 2026 The gVisor Authors.
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

package aslr

import (
	"fmt"

	"gvisor.dev/pax/pkg/hostarch"
)

// CallContext describes the mapping request an address is being chosen for.
type CallContext struct {
	// Hint is the address the caller asked for, or zero.
	Hint hostarch.Addr

	// Anonymous is true for mappings that are not backed by a file.
	Anonymous bool

	// Fixed is true if the caller demanded exactly Hint. Randomizing such a
	// request is a bug in the caller.
	Fixed bool

	// Map32Bit is true if the caller requested the low address class.
	Map32Bit bool
}

// Apply returns addr adjusted by the delta for region k.
//
// Mmap and Map32Bit deltas are added when the caller gave no hint or the
// mapping is anonymous; a hinted file mapping keeps its address. Map32Bit is
// only applied to requests for the low address class and Mmap only to the
// others. DynamicLinker and ExecBase deltas are always added. Stack and
// ThreadStack subtract the coarse part of their delta, Vdso subtracts its
// whole delta.
//
// Apply panics if s is nil, which means InitRegions has not run for the
// address space, and if a fixed mapping reaches the Mmap or Map32Bit rules.
func (s *State) Apply(k RegionKind, addr hostarch.Addr, cc CallContext) hostarch.Addr {
	if s == nil {
		panic(fmt.Sprintf("aslr: Apply(%v, %v) before InitRegions", k, addr))
	}
	if !s.active {
		return addr
	}

	switch k {
	case Mmap, Map32Bit:
		if cc.Map32Bit != (k == Map32Bit) {
			return addr
		}
		if cc.Fixed {
			panic(fmt.Sprintf("aslr: cannot randomize a fixed %v mapping at %v", k, cc.Hint))
		}
		if cc.Hint == 0 || cc.Anonymous {
			return addr + hostarch.Addr(s.deltas[k])
		}
		return addr

	case DynamicLinker, ExecBase:
		return addr + hostarch.Addr(s.deltas[k])

	case Stack, ThreadStack:
		return addr - hostarch.Addr(s.CoarseDelta(k))

	case Vdso:
		return addr - hostarch.Addr(s.deltas[Vdso])

	default:
		panic(fmt.Sprintf("aslr: Apply to unknown region %v", k))
	}
}

// ApplyStackGap returns addr lowered by the full stack delta, gap bits
// included. It is used to pad the initial stack pointer inside the stack
// mapping, after Apply(Stack, ...) placed the mapping itself.
func (s *State) ApplyStackGap(addr hostarch.Addr) hostarch.Addr {
	if s == nil {
		panic(fmt.Sprintf("aslr: ApplyStackGap(%v) before InitRegions", addr))
	}
	if !s.active {
		return addr
	}
	return addr - hostarch.Addr(s.deltas[Stack])
}
