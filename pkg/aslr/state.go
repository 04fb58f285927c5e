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
	"io"

	"gvisor.dev/pax/pkg/log"
)

// State holds the random deltas of one address space.
//
// A State is written once by InitRegions and is read-only afterwards, so it
// can be shared by every thread of the process without locking. It is
// discarded with the address space; a new image gets a new State.
type State struct {
	flags  Flags
	active bool

	// params is a copy of the table the deltas were drawn with. Apply needs
	// the coarse shifts.
	params Table

	deltas [NumRegionKinds]uint64

	vdsoAttempts int
	vdsoFallback bool
}

// InitRegions draws the deltas for a process with flags, using the widths in
// t. If flags does not mark ASLR active nothing is drawn and the returned
// State leaves every address untouched.
//
// Geometric problems with the vDSO are warnings on l, never errors. The only
// error is a failure of src.
func InitRegions(src io.Reader, flags Flags, t *Table, l log.Logger) (*State, error) {
	s := &State{
		flags:  flags,
		active: Active(flags),
		params: *t,
	}
	if !s.active {
		return s, nil
	}

	for _, k := range []RegionKind{Mmap, DynamicLinker, ExecBase} {
		d, err := Generate(src, t.Regions[k])
		if err != nil {
			return nil, fmt.Errorf("drawing %s delta: %w", k, err)
		}
		s.deltas[k] = d
	}

	placement, err := SolveVDSO(src, t.Regions[Stack], t.Regions[Vdso])
	if err != nil {
		return nil, fmt.Errorf("drawing stack and vdso deltas: %w", err)
	}
	s.deltas[Stack] = placement.Stack
	s.deltas[Vdso] = placement.VDSO
	s.vdsoAttempts = placement.Attempts
	s.vdsoFallback = placement.Fallback
	if placement.Fallback {
		vdsoFallbacks.Increment()
		stack, vdso := t.Regions[Stack], t.Regions[Vdso]
		l.Warningf("[PaX ASLR] vdso: no stack delta (%d bit at bit %d) had room for the vdso (%d bit at bit %d) after %d attempts, vdso is not randomized; check the configured widths",
			stack.Width, stack.Position, vdso.Width, vdso.Position, placement.Attempts)
	}

	thr, err := generateStack(src, t.Regions[ThreadStack])
	if err != nil {
		return nil, fmt.Errorf("drawing %s delta: %w", ThreadStack, err)
	}
	s.deltas[ThreadStack] = thr

	d, err := Generate(src, t.Regions[Map32Bit])
	if err != nil {
		return nil, fmt.Errorf("drawing %s delta: %w", Map32Bit, err)
	}
	s.deltas[Map32Bit] = d

	return s, nil
}

// Flags returns the flags the State was created for.
func (s *State) Flags() Flags {
	return s.flags
}

// Active returns true if the State randomizes addresses.
func (s *State) Active() bool {
	return s.active
}

// Delta returns the stored delta for k. For Stack and ThreadStack this is the
// full value, including the gap bits.
func (s *State) Delta(k RegionKind) uint64 {
	return s.deltas[k]
}

// CoarseDelta returns the part of the delta for k that Apply uses. It differs
// from Delta only for Stack and ThreadStack.
func (s *State) CoarseDelta(k RegionKind) uint64 {
	if k == Stack || k == ThreadStack {
		return coarse(s.deltas[k], s.params.Regions[k])
	}
	return s.deltas[k]
}

// VDSOFallback returns true if the vDSO delta was zeroed because the stack
// delta could not contain it.
func (s *State) VDSOFallback() bool {
	return s.vdsoFallback
}

// VDSOAttempts returns how many stack deltas were drawn to place the vDSO.
func (s *State) VDSOAttempts() int {
	return s.vdsoAttempts
}

// String implements fmt.Stringer.
func (s *State) String() string {
	if !s.active {
		return fmt.Sprintf("aslr.State{flags: %v, inactive}", s.flags)
	}
	return fmt.Sprintf("aslr.State{flags: %v, mmap: %#x, rtld: %#x, stack: %#x, thr_stack: %#x, exec: %#x, vdso: %#x, map32bit: %#x}",
		s.flags, s.deltas[Mmap], s.deltas[DynamicLinker], s.deltas[Stack], s.deltas[ThreadStack],
		s.deltas[ExecBase], s.deltas[Vdso], s.deltas[Map32Bit])
}
