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

// Package bits includes non-atomic bit operations on 64-bit words.
package bits

// IsOn64 returns true if *all* bits set in 'bits' are set in 'mask'.
func IsOn64(mask, bits uint64) bool {
	return mask&bits == bits
}

// IsAnyOn64 returns true if *any* bit set in 'bits' is set in 'mask'.
func IsAnyOn64(mask, bits uint64) bool {
	return mask&bits != 0
}

// MaskOf64 returns a word with only bit i set.
func MaskOf64(i int) uint64 {
	return uint64(1) << uint64(i)
}

// LowMask64 returns a word with the n low-order bits set. n >= 64 yields a
// full word.
func LowMask64(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return MaskOf64(int(n)) - 1
}

// HighMask64 returns a word with every bit at or above shift set. shift >= 64
// yields zero.
func HighMask64(shift uint) uint64 {
	if shift >= 64 {
		return 0
	}
	return ^uint64(0) << shift
}

// FieldMask64 returns a word with the half-open bit range
// [position, position+width) set. Bits that would fall beyond bit 63 are
// dropped.
func FieldMask64(width, position uint) uint64 {
	if position >= 64 {
		return 0
	}
	return LowMask64(width) << position
}
