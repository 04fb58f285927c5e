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

package bits

import "testing"

func TestIsOn(t *testing.T) {
	mask := uint64(0b1011)
	if !IsOn64(mask, 0b0011) {
		t.Errorf("IsOn64(%#b, 0b0011) = false, want true", mask)
	}
	if IsOn64(mask, 0b0111) {
		t.Errorf("IsOn64(%#b, 0b0111) = true, want false", mask)
	}
	if !IsAnyOn64(mask, 0b0110) {
		t.Errorf("IsAnyOn64(%#b, 0b0110) = false, want true", mask)
	}
	if IsAnyOn64(mask, 0b0100) {
		t.Errorf("IsAnyOn64(%#b, 0b0100) = true, want false", mask)
	}
}

func TestLowMask64(t *testing.T) {
	for _, tc := range []struct {
		n    uint
		want uint64
	}{
		{0, 0},
		{1, 1},
		{12, 0xfff},
		{63, 0x7fffffffffffffff},
		{64, ^uint64(0)},
		{100, ^uint64(0)},
	} {
		if got := LowMask64(tc.n); got != tc.want {
			t.Errorf("LowMask64(%d) = %#x, want %#x", tc.n, got, tc.want)
		}
	}
}

func TestHighMask64(t *testing.T) {
	for _, tc := range []struct {
		shift uint
		want  uint64
	}{
		{0, ^uint64(0)},
		{12, 0xfffffffffffff000},
		{63, 0x8000000000000000},
		{64, 0},
	} {
		if got := HighMask64(tc.shift); got != tc.want {
			t.Errorf("HighMask64(%d) = %#x, want %#x", tc.shift, got, tc.want)
		}
	}
}

func TestFieldMask64(t *testing.T) {
	for _, tc := range []struct {
		width, position uint
		want            uint64
	}{
		{0, 12, 0},
		{30, 12, 0x3fffffff000},
		{8, 60, 0xf000000000000000},
		{4, 64, 0},
		{64, 0, ^uint64(0)},
	} {
		if got := FieldMask64(tc.width, tc.position); got != tc.want {
			t.Errorf("FieldMask64(%d, %d) = %#x, want %#x", tc.width, tc.position, got, tc.want)
		}
	}
}
