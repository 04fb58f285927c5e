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
)

// ResolveASLR combines a domain's ASLR status with the mode an image requests
// and returns the process flag set.
//
// Disabled and ForceEnabled ignore mode entirely. Under OptIn and OptOut
// shared library randomization follows NoteShlibRandom in mode on its own,
// independently of the ASLR decision.
//
// An invalid status yields ASLR and shared library randomization both on,
// together with an error wrapping ErrInvalidStatus. The returned flags are
// always usable.
func ResolveASLR(status Status, mode Flags) (Flags, error) {
	var flags Flags

	switch status {
	case Disabled:
		flags = aslrPair.set(flags, false)
		flags = shlibPair.set(flags, false)
		return flags, nil

	case ForceEnabled:
		flags = aslrPair.set(flags, true)
		flags = shlibPair.set(flags, true)
		return flags, nil

	case OptIn, OptOut:
		flags = shlibPair.set(flags, mode.Has(NoteShlibRandom))
		if status == OptIn {
			flags = aslrPair.set(flags, mode.Has(NoteASLR))
		} else {
			flags = aslrPair.set(flags, !mode.Has(NoteNoASLR))
		}
		return flags, nil
	}

	flags = aslrPair.set(flags, true)
	flags = shlibPair.set(flags, true)
	return flags, fmt.Errorf("%w: aslr status %d", ErrInvalidStatus, int32(status))
}

// ResolveDisallowMap32Bit is ResolveASLR for the low address restriction. An
// invalid status forces the restriction on.
func ResolveDisallowMap32Bit(status Status, mode Flags) (Flags, error) {
	var flags Flags

	switch status {
	case Disabled:
		return map32BitPair.set(flags, false), nil
	case ForceEnabled:
		return map32BitPair.set(flags, true), nil
	case OptIn:
		return map32BitPair.set(flags, mode.Has(NoteDisallowMap32Bit)), nil
	case OptOut:
		return map32BitPair.set(flags, !mode.Has(NoteNoDisallowMap32Bit)), nil
	}

	return map32BitPair.set(flags, true), fmt.Errorf("%w: disallow_map32bit status %d", ErrInvalidStatus, int32(status))
}
