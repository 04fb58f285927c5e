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
	"io"

	"gvisor.dev/pax/pkg/bits"
)

// vdsoRetries is the number of times the stack delta is redrawn when it is
// too narrow to hold the vDSO. Together with the first attempt this bounds
// SolveVDSO to four iterations.
const vdsoRetries = 3

// VDSOPlacement is the result of SolveVDSO.
type VDSOPlacement struct {
	// Stack is the stack delta the vDSO delta was fitted against. It replaces
	// any previously drawn stack delta.
	Stack uint64

	// VDSO is the delta to subtract from the top of the address space.
	VDSO uint64

	// Attempts is the number of stack deltas drawn, at most vdsoRetries+1.
	Attempts int

	// Fallback is true if no stack delta was wide enough and VDSO is zero.
	Fallback bool
}

// SolveVDSO draws a stack delta and a vDSO delta such that the vDSO,
// subtracted from the top of the address space, lands inside the gap opened
// by the coarse stack delta.
//
// If the coarse stack delta has no bits at or above the vDSO position there
// is no gap to use and the stack delta is redrawn, up to vdsoRetries times.
// When every attempt fails the vDSO delta is zero and Fallback is set. An
// error is returned only if src fails.
func SolveVDSO(src io.Reader, stack, vdso RegionParams) (VDSOPlacement, error) {
	vdsoMask := bits.HighMask64(vdso.Position)
	for attempt := 1; ; attempt++ {
		stackDelta, err := generateStack(src, stack)
		if err != nil {
			return VDSOPlacement{}, err
		}
		candidate, err := Generate(src, vdso)
		if err != nil {
			return VDSOPlacement{}, err
		}

		gap := coarse(stackDelta, stack)
		if gap&vdsoMask != 0 {
			// Fold the candidate below the coarse stack delta. Equality is
			// folded too so that the vDSO never touches the stack.
			if candidate >= gap {
				candidate %= gap
				candidate &= vdsoMask
			}
			return VDSOPlacement{
				Stack:    stackDelta,
				VDSO:     candidate,
				Attempts: attempt,
			}, nil
		}

		if attempt > vdsoRetries {
			return VDSOPlacement{
				Stack:    stackDelta,
				Attempts: attempt,
				Fallback: true,
			}, nil
		}
	}
}
