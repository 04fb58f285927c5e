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
	"errors"
	"testing"
)

// allModes enumerates every combination of the six note bits.
func allModes() []Flags {
	var out []Flags
	for i := 0; i < 1<<6; i++ {
		out = append(out, Flags(i)<<6)
	}
	return out
}

func TestResolveASLRIgnoresModeWhenForced(t *testing.T) {
	for _, mode := range allModes() {
		got, err := ResolveASLR(Disabled, mode)
		if err != nil {
			t.Fatalf("ResolveASLR(Disabled, %v) failed: %v", mode, err)
		}
		if want := NoteNoASLR | NoteNoShlibRandom; got != want {
			t.Errorf("ResolveASLR(Disabled, %v) = %v, want %v", mode, got, want)
		}

		got, err = ResolveASLR(ForceEnabled, mode)
		if err != nil {
			t.Fatalf("ResolveASLR(ForceEnabled, %v) failed: %v", mode, err)
		}
		if want := NoteASLR | NoteShlibRandom; got != want {
			t.Errorf("ResolveASLR(ForceEnabled, %v) = %v, want %v", mode, got, want)
		}
	}
}

func TestResolveASLRFollowsMode(t *testing.T) {
	for _, mode := range allModes() {
		optIn, err := ResolveASLR(OptIn, mode)
		if err != nil {
			t.Fatalf("ResolveASLR(OptIn, %v) failed: %v", mode, err)
		}
		if got, want := optIn.Has(NoteASLR), mode.Has(NoteASLR); got != want {
			t.Errorf("ResolveASLR(OptIn, %v) = %v, ASLR on = %t, want %t", mode, optIn, got, want)
		}

		optOut, err := ResolveASLR(OptOut, mode)
		if err != nil {
			t.Fatalf("ResolveASLR(OptOut, %v) failed: %v", mode, err)
		}
		if got, want := optOut.Has(NoteASLR), !mode.Has(NoteNoASLR); got != want {
			t.Errorf("ResolveASLR(OptOut, %v) = %v, ASLR on = %t, want %t", mode, optOut, got, want)
		}

		for _, f := range []Flags{optIn, optOut} {
			if got, want := f.Has(NoteShlibRandom), mode.Has(NoteShlibRandom); got != want {
				t.Errorf("flags %v for mode %v: SHLIBRANDOM = %t, want %t", f, mode, got, want)
			}
		}
	}
}

func TestResolvedFlagsAreConsistent(t *testing.T) {
	for s := Status(-1); s <= 4; s++ {
		for _, mode := range allModes() {
			f, _ := ResolveASLR(s, mode)
			m, _ := ResolveDisallowMap32Bit(s, mode)
			if !(f | m).Consistent() {
				t.Errorf("status %d, mode %v: inconsistent flags %v", int32(s), mode, f|m)
			}
			if f.Has(NoteASLR) == f.Has(NoteNoASLR) {
				t.Errorf("status %d, mode %v: ASLR pair not exclusive in %v", int32(s), mode, f)
			}
			if m.Has(NoteDisallowMap32Bit) == m.Has(NoteNoDisallowMap32Bit) {
				t.Errorf("status %d, mode %v: map32bit pair not exclusive in %v", int32(s), mode, m)
			}
		}
	}
}

func TestResolveInvalidStatus(t *testing.T) {
	f, err := ResolveASLR(9, NoteNoASLR)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ResolveASLR(9) error = %v, want %v", err, ErrInvalidStatus)
	}
	if want := NoteASLR | NoteShlibRandom; f != want {
		t.Errorf("ResolveASLR(9) = %v, want %v", f, want)
	}

	m, err := ResolveDisallowMap32Bit(-3, NoteNoDisallowMap32Bit)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ResolveDisallowMap32Bit(-3) error = %v, want %v", err, ErrInvalidStatus)
	}
	if m != NoteDisallowMap32Bit {
		t.Errorf("ResolveDisallowMap32Bit(-3) = %v, want %v", m, NoteDisallowMap32Bit)
	}
}

func TestResolveDisallowMap32Bit(t *testing.T) {
	for _, tc := range []struct {
		status Status
		mode   Flags
		want   Flags
	}{
		{Disabled, NoteDisallowMap32Bit, NoteNoDisallowMap32Bit},
		{ForceEnabled, NoteNoDisallowMap32Bit, NoteDisallowMap32Bit},
		{OptIn, 0, NoteNoDisallowMap32Bit},
		{OptIn, NoteDisallowMap32Bit, NoteDisallowMap32Bit},
		{OptOut, 0, NoteDisallowMap32Bit},
		{OptOut, NoteNoDisallowMap32Bit, NoteNoDisallowMap32Bit},
	} {
		got, err := ResolveDisallowMap32Bit(tc.status, tc.mode)
		if err != nil {
			t.Fatalf("ResolveDisallowMap32Bit(%v, %v) failed: %v", tc.status, tc.mode, err)
		}
		if got != tc.want {
			t.Errorf("ResolveDisallowMap32Bit(%v, %v) = %v, want %v", tc.status, tc.mode, got, tc.want)
		}
	}
}

func TestActive(t *testing.T) {
	for _, tc := range []struct {
		flags Flags
		want  bool
	}{
		{0, true},
		{NoteASLR, true},
		{NoteNoASLR, false},
		{NoteASLR | NoteNoASLR, true},
		{NoteNoASLR | NoteShlibRandom, false},
	} {
		if got := Active(tc.flags); got != tc.want {
			t.Errorf("Active(%v) = %t, want %t", tc.flags, got, tc.want)
		}
	}
}

func TestDisallowMap32BitActive(t *testing.T) {
	if DisallowMap32BitActive(NoteDisallowMap32Bit, false) {
		t.Errorf("DisallowMap32BitActive(%v, false) = true, want false", NoteDisallowMap32Bit)
	}
	if !DisallowMap32BitActive(NoteDisallowMap32Bit, true) {
		t.Errorf("DisallowMap32BitActive(%v, true) = false, want true", NoteDisallowMap32Bit)
	}
	if DisallowMap32BitActive(NoteNoDisallowMap32Bit, true) {
		t.Errorf("DisallowMap32BitActive(%v, true) = true, want false", NoteNoDisallowMap32Bit)
	}
	if !DisallowMap32BitActive(0, true) {
		t.Errorf("DisallowMap32BitActive(0, true) = false, want true")
	}
}

func TestParseMode(t *testing.T) {
	got, err := ParseMode("aslr, NoShlibRandom,disallow_map32bit")
	if err != nil {
		t.Fatalf("ParseMode failed: %v", err)
	}
	if want := NoteASLR | NoteNoShlibRandom | NoteDisallowMap32Bit; got != want {
		t.Errorf("ParseMode = %v, want %v", got, want)
	}
	if got, err := ParseMode(""); err != nil || got != 0 {
		t.Errorf("ParseMode(\"\") = %v, %v, want 0, nil", got, err)
	}
	if _, err := ParseMode("aslr,segvguard"); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("ParseMode(segvguard) = %v, want %v", err, ErrInvalidParam)
	}
}

func TestFlagsString(t *testing.T) {
	for _, tc := range []struct {
		flags Flags
		want  string
	}{
		{0, "0"},
		{NoteASLR | NoteNoShlibRandom, "ASLR|NOSHLIBRANDOM"},
		{NoteNoDisallowMap32Bit | 0x1, "NODISALLOW_MAP32BIT|0x1"},
	} {
		if got := tc.flags.String(); got != tc.want {
			t.Errorf("Flags(%#x).String() = %q, want %q", uint32(tc.flags), got, tc.want)
		}
	}
}
