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
	"strings"

	"gvisor.dev/pax/pkg/bits"
)

// Flags is a set of PaX note bits. The same type carries the mode an image
// requests (from its ELF note or extended attributes) and the flag set the
// policy resolves for the process.
type Flags uint32

// Note bits. Values match the PaX ELF note encoding.
const (
	NoteASLR               Flags = 0x00000040
	NoteNoASLR             Flags = 0x00000080
	NoteShlibRandom        Flags = 0x00000100
	NoteNoShlibRandom      Flags = 0x00000200
	NoteDisallowMap32Bit   Flags = 0x00000400
	NoteNoDisallowMap32Bit Flags = 0x00000800
)

// flagPair is a pair of mutually exclusive note bits.
type flagPair struct {
	name    string
	on, off Flags
}

var (
	aslrPair     = flagPair{"aslr", NoteASLR, NoteNoASLR}
	shlibPair    = flagPair{"shlibrandom", NoteShlibRandom, NoteNoShlibRandom}
	map32BitPair = flagPair{"disallow_map32bit", NoteDisallowMap32Bit, NoteNoDisallowMap32Bit}

	allPairs = []flagPair{aslrPair, shlibPair, map32BitPair}
)

// set returns f with the pair resolved to on (enabled) or off.
func (p flagPair) set(f Flags, enabled bool) Flags {
	if enabled {
		return (f &^ p.off) | p.on
	}
	return (f &^ p.on) | p.off
}

// resolved reports whether exactly one bit of the pair is set in f.
func (p flagPair) resolved(f Flags) bool {
	return f.Has(p.on) != f.Has(p.off)
}

// Has returns true if every bit in b is set in f.
func (f Flags) Has(b Flags) bool {
	return bits.IsOn64(uint64(f), uint64(b))
}

// Consistent returns true if the ASLR and shared library pairs each have
// exactly one bit set, and the low-address pair has either exactly one bit
// set or none (the platform does not support it).
func (f Flags) Consistent() bool {
	if !aslrPair.resolved(f) || !shlibPair.resolved(f) {
		return false
	}
	return !f.Has(NoteDisallowMap32Bit) || !f.Has(NoteNoDisallowMap32Bit)
}

// String implements fmt.Stringer.
func (f Flags) String() string {
	var parts []string
	for _, p := range allPairs {
		if f.Has(p.on) {
			parts = append(parts, strings.ToUpper(p.name))
		}
		if f.Has(p.off) {
			parts = append(parts, "NO"+strings.ToUpper(p.name))
		}
	}
	known := aslrPair.on | aslrPair.off | shlibPair.on | shlibPair.off | map32BitPair.on | map32BitPair.off
	if rest := f &^ known; rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// ParseMode parses a comma separated list of note names, such as
// "aslr,noshlibrandom", into Flags. Names are case insensitive.
func ParseMode(v string) (Flags, error) {
	var f Flags
	for _, name := range strings.Split(v, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		found := false
		for _, p := range allPairs {
			switch name {
			case p.name:
				f |= p.on
				found = true
			case "no" + p.name:
				f |= p.off
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown mode bit %q", ErrInvalidParam, name)
		}
	}
	return f, nil
}

// Active returns true if f marks ASLR active for the process. An explicit
// NoteASLR wins, then an explicit NoteNoASLR; with neither set randomization
// is on.
func Active(f Flags) bool {
	if f.Has(NoteASLR) {
		return true
	}
	if f.Has(NoteNoASLR) {
		return false
	}
	return true
}

// DisallowMap32BitActive returns true if a mapping that requests the low
// address class must be refused for a process with flags f.
func DisallowMap32BitActive(f Flags, map32BitRequested bool) bool {
	if !map32BitRequested {
		return false
	}
	if f.Has(NoteDisallowMap32Bit) {
		return true
	}
	if f.Has(NoteNoDisallowMap32Bit) {
		return false
	}
	return true
}
