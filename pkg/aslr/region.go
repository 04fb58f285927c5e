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

// RegionKind identifies a memory region that receives its own random delta.
type RegionKind int

const (
	// Mmap is the base of the mmap area used for non-fixed mappings.
	Mmap RegionKind = iota

	// DynamicLinker is the load base of the runtime linker.
	DynamicLinker

	// Stack is the main thread stack. Its delta is subtracted from the top of
	// the stack.
	Stack

	// ThreadStack covers stacks created for additional threads.
	ThreadStack

	// ExecBase is the load base of a position independent executable.
	ExecBase

	// Vdso is the vDSO page, placed below the top of the user address space
	// inside the gap carved out by the stack delta.
	Vdso

	// Map32Bit is the base for mappings that request the low 2GB address
	// class.
	Map32Bit

	// NumRegionKinds is the number of region kinds.
	NumRegionKinds
)

var regionNames = [NumRegionKinds]string{
	Mmap:          "mmap",
	DynamicLinker: "rtld",
	Stack:         "stack",
	ThreadStack:   "thr_stack",
	ExecBase:      "exec",
	Vdso:          "vdso",
	Map32Bit:      "map32bit",
}

// String implements fmt.Stringer. The names match the tunable suffixes, e.g.
// "hardening.pax.aslr.mmap_len".
func (k RegionKind) String() string {
	if k < 0 || k >= NumRegionKinds {
		return fmt.Sprintf("RegionKind(%d)", int(k))
	}
	return regionNames[k]
}

// ParseRegionKind is the inverse of RegionKind.String.
func ParseRegionKind(name string) (RegionKind, error) {
	for i, n := range regionNames {
		if n == name {
			return RegionKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown region %q", ErrInvalidParam, name)
}

// RegionParams describes the random bits of one region's delta.
type RegionParams struct {
	// Width is the number of random bits. Zero disables randomization for the
	// region.
	Width uint `toml:"len" yaml:"len"`

	// Position is the index of the lowest random bit.
	Position uint `toml:"lsb" yaml:"lsb"`

	// Coarse is only meaningful for Stack and ThreadStack. Bits below Coarse
	// form the sub-page gap; the stack base moves by the bits at or above it.
	Coarse uint `toml:"coarse" yaml:"coarse"`
}

// Personality selects the binary personality of an image.
type Personality int

const (
	// Native is the host's own ABI.
	Native Personality = iota

	// Compat is the 32-bit compatibility ABI on a 64-bit host.
	Compat
)

// String implements fmt.Stringer.
func (p Personality) String() string {
	switch p {
	case Native:
		return "native"
	case Compat:
		return "compat"
	default:
		return fmt.Sprintf("Personality(%d)", int(p))
	}
}

// Table is the set of RegionParams for one personality.
type Table struct {
	// WordBits is the width of an address for the personality. It is only
	// used by Config.Validate to warn about regions that do not fit.
	WordBits uint

	// Regions is indexed by RegionKind.
	Regions [NumRegionKinds]RegionParams
}

// Params returns the parameters for region k.
func (t *Table) Params(k RegionKind) RegionParams {
	return t.Regions[k]
}

// Arch selects one of the default tables.
type Arch int

const (
	// LP64 is a 64-bit host.
	LP64 Arch = iota

	// ILP32 is a 32-bit host.
	ILP32
)

// String implements fmt.Stringer.
func (a Arch) String() string {
	switch a {
	case LP64:
		return "lp64"
	case ILP32:
		return "ilp32"
	default:
		return fmt.Sprintf("Arch(%d)", int(a))
	}
}

// Bit positions shared by all default tables. Stack deltas start at bit 3 so
// that the low part can pad the stack inside its top page; the rest move the
// stack by whole pages.
const (
	pageLSB      = hostarch.PageShift
	stackGapLSB  = 3
	threadGapLSB = 3
)

// nativeTable64 returns the defaults for a 64-bit host:
//
//	mmap 30, rtld 30, stack 42, thread stack 42, exec 30, vdso 28, map32bit 18
func nativeTable64() Table {
	return Table{
		WordBits: 64,
		Regions: [NumRegionKinds]RegionParams{
			Mmap:          {Width: 30, Position: pageLSB},
			DynamicLinker: {Width: 30, Position: pageLSB},
			Stack:         {Width: 42, Position: stackGapLSB, Coarse: pageLSB},
			ThreadStack:   {Width: 42, Position: threadGapLSB, Coarse: threadGapLSB},
			ExecBase:      {Width: 30, Position: pageLSB},
			Vdso:          {Width: 28, Position: pageLSB},
			Map32Bit:      {Width: 18, Position: pageLSB},
		},
	}
}

// narrowTable returns the defaults for a 32-bit address space, used both for
// 32-bit hosts and for the compat personality. There is no thread stack or
// low address class randomization.
func narrowTable() Table {
	return Table{
		WordBits: 32,
		Regions: [NumRegionKinds]RegionParams{
			Mmap:          {Width: 14, Position: pageLSB},
			DynamicLinker: {Width: 14, Position: pageLSB},
			Stack:         {Width: 14, Position: stackGapLSB, Coarse: pageLSB},
			ThreadStack:   {Width: 0, Position: threadGapLSB, Coarse: threadGapLSB},
			ExecBase:      {Width: 14, Position: pageLSB},
			Vdso:          {Width: 8, Position: pageLSB},
			Map32Bit:      {Width: 0, Position: pageLSB},
		},
	}
}
