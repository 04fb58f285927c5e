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

// Package layout places the regions of a new user address space, applying
// the PaX ASLR deltas of the process.
package layout

import (
	"fmt"

	"golang.org/x/sys/unix"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/pkg/errors"
	"gvisor.dev/pax/pkg/hostarch"
)

// These constants follow the amd64 Linux and FreeBSD layouts.
const (
	// maxAddr64 is the maximum userspace address for a native process.
	maxAddr64 hostarch.Addr = (1 << 47) - hostarch.PageSize

	// maxAddr32 is the maximum userspace address for a compat process.
	maxAddr32 hostarch.Addr = (1 << 32) - hostarch.PageSize

	// minStackGap is the smallest gap left between the stack and the top
	// down mmap base.
	minStackGap = 128 << 20

	// map32BitBase is where the search for a low address class mapping
	// starts. Such mappings must end below map32BitEnd.
	map32BitBase hostarch.Addr = 0x40000000
	map32BitEnd  hostarch.Addr = 0x80000000
)

// Infinity is an unlimited stack size.
const Infinity = ^uint64(0)

var (
	// ErrInvalidRange is returned when the usable address range is empty.
	ErrInvalidRange = errors.New(unix.EINVAL, "invalid address range")

	// ErrInvalidLayout is returned when the deltas push a region out of the
	// address range.
	ErrInvalidLayout = errors.New(unix.ENOMEM, "randomized layout does not fit the address space")
)

// Direction is a search direction for mmaps.
type Direction int

const (
	// BottomUp instructs mmap to prefer lower addresses.
	BottomUp Direction = iota

	// TopDown instructs mmap to prefer higher addresses.
	TopDown
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == TopDown {
		return "top-down"
	}
	return "bottom-up"
}

// Layout is the layout of a user address space.
//
// Note that "highest address" below is always exclusive.
type Layout struct {
	// MinAddr is the lowest mappable address.
	MinAddr hostarch.Addr

	// MaxAddr is the highest mappable address.
	MaxAddr hostarch.Addr

	// BottomUpBase is the lowest address that may be returned for a
	// BottomUp mmap.
	BottomUpBase hostarch.Addr

	// TopDownBase is the highest address that may be returned for a
	// TopDown mmap.
	TopDownBase hostarch.Addr

	// DefaultDirection is the direction for most non-fixed mmaps.
	DefaultDirection Direction

	// SharedPage is the address of the unrandomized top page, from which the
	// stack and vDSO are placed.
	SharedPage hostarch.Addr

	// VDSOBase is the load address of the vDSO.
	VDSOBase hostarch.Addr

	// StackTop is the highest address of the main thread stack mapping.
	StackTop hostarch.Addr

	// StackPointer is the initial stack pointer. It is below StackTop by the
	// sub-page gap.
	StackPointer hostarch.Addr

	// ExecBase is the load address of a position independent executable.
	ExecBase hostarch.Addr

	// Map32BitBase is the lowest address returned for a low address class
	// mapping. Zero if the personality has no such class.
	Map32BitBase hostarch.Addr

	state *aslr.State
}

// New returns the layout of an address space spanning [min, max) for a
// process with personality p, stack limit stackSize and ASLR state s.
func New(min, max hostarch.Addr, stackSize uint64, p aslr.Personality, s *aslr.State) (Layout, error) {
	if s == nil {
		return Layout{}, fmt.Errorf("%w: no ASLR state", ErrInvalidRange)
	}
	min, ok := min.RoundUp()
	if !ok {
		return Layout{}, fmt.Errorf("%w: min %v", ErrInvalidRange, min)
	}
	limit := maxAddr64
	if p == aslr.Compat {
		limit = maxAddr32
	}
	if max > limit {
		max = limit
	}
	max = max.RoundDown()
	if min >= max {
		return Layout{}, fmt.Errorf("%w: [%v, %v)", ErrInvalidRange, min, max)
	}

	// MAX_GAP in Linux.
	maxGap := uint64(max/6) * 5
	gap := stackSize
	if gap < minStackGap {
		gap = minStackGap
	}
	if gap > maxGap {
		gap = maxGap
	}
	dir := TopDown
	if stackSize == Infinity {
		dir = BottomUp
	}

	l := Layout{
		MinAddr:          min,
		MaxAddr:          max,
		DefaultDirection: dir,
		SharedPage:       max - hostarch.PageSize,
		state:            s,
	}
	l.VDSOBase = s.Apply(aslr.Vdso, l.SharedPage, aslr.CallContext{})
	l.StackTop = s.Apply(aslr.Stack, l.SharedPage, aslr.CallContext{})
	l.StackPointer = s.ApplyStackGap(l.SharedPage)
	// TASK_UNMAPPED_BASE in Linux.
	l.BottomUpBase = s.Apply(aslr.Mmap, (max / 3).RoundDown(), aslr.CallContext{Anonymous: true})
	if l.StackTop >= min+hostarch.Addr(gap) {
		l.TopDownBase = (l.StackTop - hostarch.Addr(gap)).RoundDown()
	}

	// ELF_ET_DYN_BASE in Linux, falling back to 2/3 of TopDownBase when the
	// preferred base does not fit below it.
	exec := max / 3 * 2
	if s.Apply(aslr.ExecBase, exec, aslr.CallContext{}) >= l.TopDownBase {
		exec = l.TopDownBase / 3 * 2
	}
	l.ExecBase = s.Apply(aslr.ExecBase, exec.RoundDown(), aslr.CallContext{})

	if p == aslr.Native && max > map32BitEnd {
		l.Map32BitBase = s.Apply(aslr.Map32Bit, map32BitBase, aslr.CallContext{Anonymous: true, Map32Bit: true})
	}

	if err := l.Check(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Check returns an error describing the first region that falls outside the
// address range or overlaps its neighbour.
func (l *Layout) Check() error {
	switch {
	case l.MinAddr > l.MaxAddr:
		return fmt.Errorf("%w: min %v above max %v", ErrInvalidRange, l.MinAddr, l.MaxAddr)
	case l.BottomUpBase < l.MinAddr || l.BottomUpBase > l.MaxAddr:
		return fmt.Errorf("%w: bottom up base %v", ErrInvalidLayout, l.BottomUpBase)
	case l.TopDownBase < l.MinAddr || l.TopDownBase > l.MaxAddr:
		return fmt.Errorf("%w: top down base %v", ErrInvalidLayout, l.TopDownBase)
	case l.StackTop > l.SharedPage || l.StackTop <= l.TopDownBase:
		return fmt.Errorf("%w: stack top %v", ErrInvalidLayout, l.StackTop)
	case l.StackPointer > l.StackTop || l.StackPointer <= l.TopDownBase:
		return fmt.Errorf("%w: stack pointer %v", ErrInvalidLayout, l.StackPointer)
	case l.VDSOBase < l.StackTop || l.VDSOBase > l.SharedPage:
		return fmt.Errorf("%w: vdso %v overlaps the stack below %v", ErrInvalidLayout, l.VDSOBase, l.StackTop)
	case l.ExecBase < l.MinAddr || l.ExecBase >= l.TopDownBase:
		return fmt.Errorf("%w: exec base %v", ErrInvalidLayout, l.ExecBase)
	case l.Map32BitBase != 0 && (l.Map32BitBase < map32BitBase || l.Map32BitBase >= map32BitEnd):
		return fmt.Errorf("%w: map32bit base %v", ErrInvalidLayout, l.Map32BitBase)
	}
	return nil
}

// InterpreterBase returns the load address of the dynamic linker when the
// loader would otherwise place it at base.
func (l *Layout) InterpreterBase(base hostarch.Addr) hostarch.Addr {
	return l.state.Apply(aslr.DynamicLinker, base, aslr.CallContext{})
}

// ThreadStackTop returns the top of a new thread stack whose unrandomized
// top is top.
func (l *Layout) ThreadStackTop(top hostarch.Addr) hostarch.Addr {
	return l.state.Apply(aslr.ThreadStack, top, aslr.CallContext{})
}

// MmapRequest is a non-fixed mmap to be placed.
type MmapRequest struct {
	// Hint is the address requested by the caller, or zero.
	Hint hostarch.Addr

	// Anonymous is true if the mapping is not backed by a file.
	Anonymous bool

	// Map32Bit is true if the mapping must be in the low address class.
	Map32Bit bool
}

// MmapBase returns the address a bottom up search for a free range starts
// at. Requests without a hint start from the unrandomized BottomUpBase.
//
// Low address class requests are refused with EPERM if flags forbid them.
func (l *Layout) MmapBase(req MmapRequest) (hostarch.Addr, error) {
	cc := aslr.CallContext{Hint: req.Hint, Anonymous: req.Anonymous, Map32Bit: req.Map32Bit}
	if req.Map32Bit {
		if l.Map32BitBase == 0 {
			return 0, fmt.Errorf("%w: no low address class", ErrInvalidRange)
		}
		if aslr.DisallowMap32BitActive(l.state.Flags(), true) {
			return 0, errors.New(unix.EPERM, "low address class mappings are disallowed")
		}
		return l.state.Apply(aslr.Map32Bit, map32BitBase, cc), nil
	}

	base := req.Hint
	if base == 0 {
		base = (l.MaxAddr / 3).RoundDown()
	}
	return l.state.Apply(aslr.Mmap, base, cc), nil
}

// String implements fmt.Stringer.
func (l Layout) String() string {
	return fmt.Sprintf("[%v, %v) %v bottom-up %v top-down %v stack %v sp %v vdso %v exec %v map32bit %v",
		l.MinAddr, l.MaxAddr, l.DefaultDirection, l.BottomUpBase, l.TopDownBase,
		l.StackTop, l.StackPointer, l.VDSOBase, l.ExecBase, l.Map32BitBase)
}
