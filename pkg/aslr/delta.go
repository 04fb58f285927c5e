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
	"gvisor.dev/pax/pkg/hostarch"
	"gvisor.dev/pax/pkg/rand"
)

// ExtractBits keeps the width low-order bits of word and moves them up to
// position. The result has no bits set outside [position, position+width).
//
// width == 0 always yields 0. width >= 64 keeps the whole word. Bits moved
// past bit 63 are lost, so position >= 64 also yields 0.
func ExtractBits(word uint64, width, position uint) uint64 {
	if position >= hostarch.WordBits {
		return 0
	}
	return (word & bits.LowMask64(width)) << position
}

// Generate draws one word from src and extracts a delta for p.
func Generate(src io.Reader, p RegionParams) (uint64, error) {
	word, err := rand.Uint64(src)
	if err != nil {
		return 0, err
	}
	return ExtractBits(word, p.Width, p.Position), nil
}

// generateStack is Generate for Stack and ThreadStack. The delta is pointer
// aligned by clearing its low bits, and keeps both the coarse part and the
// gap from the same draw.
func generateStack(src io.Reader, p RegionParams) (uint64, error) {
	d, err := Generate(src, p)
	if err != nil {
		return 0, err
	}
	return d &^ (hostarch.PointerAlign - 1), nil
}

// coarse returns the part of a stack delta that moves the stack base.
func coarse(delta uint64, p RegionParams) uint64 {
	return delta & bits.HighMask64(p.Coarse)
}
