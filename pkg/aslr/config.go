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
	"gvisor.dev/pax/pkg/bits"
	"gvisor.dev/pax/pkg/log"
)

// Config is the host-owned configuration of the engine. It seeds the root
// domain and supplies the region tables. Nothing in this package keeps a
// Config in a global; it is passed to NewEngine or NewTree explicitly.
type Config struct {
	// Arch is the host word size the defaults were chosen for.
	Arch Arch

	// Status seeds the root domain's ASLR status.
	Status Status

	// CompatStatus seeds the root domain's ASLR status for compat images.
	// Ignored unless HasCompat is set.
	CompatStatus Status

	// DisallowMap32BitStatus seeds the root domain's low address restriction.
	// Ignored unless HasMap32Bit is set.
	DisallowMap32BitStatus Status

	// Native is used for images running with the host's personality.
	Native Table

	// Compat is used for compat images.
	Compat Table

	// HasCompat is true if the host runs a second, narrower personality.
	HasCompat bool

	// HasMap32Bit is true if the host supports the low address mapping class.
	HasMap32Bit bool
}

// DefaultConfig returns the defaults for arch. ASLR is OptOut for both
// personalities and the low address restriction is OptIn.
func DefaultConfig(arch Arch) *Config {
	c := &Config{
		Arch:                   arch,
		Status:                 OptOut,
		CompatStatus:           OptOut,
		DisallowMap32BitStatus: OptIn,
	}
	switch arch {
	case ILP32:
		c.Native = narrowTable()
		c.Compat = narrowTable()
	default:
		c.Native = nativeTable64()
		c.Compat = narrowTable()
		c.HasCompat = true
		c.HasMap32Bit = true
	}
	return c
}

// Harden switches the defaults a hardened build uses: the low address
// restriction becomes OptOut.
func (c *Config) Harden() {
	c.DisallowMap32BitStatus = OptOut
}

// Table returns the region table for personality p. Compat falls back to the
// native table when the host has no compat personality.
func (c *Config) Table(p Personality) *Table {
	if p == Compat && c.HasCompat {
		return &c.Compat
	}
	return &c.Native
}

// Validate checks c and fixes what it can. An invalid status is replaced by
// ForceEnabled. Out of range widths are only reported: they are clipped to
// the word by the delta arithmetic. Validate never fails; every problem is a
// warning on l.
func (c *Config) Validate(l log.Logger) {
	c.validateStatus(l, &c.Status, FeatureASLR)
	if c.HasCompat {
		c.validateStatus(l, &c.CompatStatus, FeatureCompatASLR)
	}
	if c.HasMap32Bit {
		c.validateStatus(l, &c.DisallowMap32BitStatus, FeatureDisallowMap32Bit)
	}

	c.validateTable(l, Native, &c.Native)
	if c.HasCompat {
		c.validateTable(l, Compat, &c.Compat)
	}
}

func (c *Config) validateStatus(l log.Logger, s *Status, f Feature) {
	old := *s
	if v, ok := ValidateStatus(old); !ok {
		*s = v
		policyErrors.Increment(f.String())
		l.Warningf("[PaX ASLR] WARNING, invalid PaX settings! (%s = %d), using %s", f.Param(), int32(old), v)
	}
}

func (c *Config) validateTable(l log.Logger, p Personality, t *Table) {
	for k := RegionKind(0); k < NumRegionKinds; k++ {
		r := t.Regions[k]
		if k == Map32Bit && (!c.HasMap32Bit || p != Native) {
			if r.Width != 0 {
				l.Warningf("[PaX ASLR] WARNING, %s %s: %d bit configured but the low address class is not supported", p, k, r.Width)
			}
			continue
		}
		if r.Width > t.WordBits || r.Position >= t.WordBits || r.Width+r.Position > t.WordBits {
			l.Warningf("[PaX ASLR] WARNING, %s %s: %d bit at bit %d does not fit a %d bit word", p, k, r.Width, r.Position, t.WordBits)
		}
		if (k == Stack || k == ThreadStack) && r.Coarse > t.WordBits {
			l.Warningf("[PaX ASLR] WARNING, %s %s: coarse shift %d is beyond a %d bit word", p, k, r.Coarse, t.WordBits)
		}
	}

	stack, vdso := t.Regions[Stack], t.Regions[Vdso]
	room := bits.FieldMask64(stack.Width, stack.Position) & bits.HighMask64(stack.Coarse) & bits.HighMask64(vdso.Position)
	if vdso.Width != 0 && room == 0 {
		l.Warningf("[PaX ASLR] WARNING, %s stack randomization (%d bit at bit %d) leaves no room for the vdso (%d bit at bit %d), the vdso will not be randomized", p, stack.Width, stack.Position, vdso.Width, vdso.Position)
	}
}

// Log prints the effective configuration at Info level.
func (c *Config) Log(l log.Logger) {
	l.Infof("[PaX ASLR] status: %s", c.Status)
	logTable(l, "[PaX ASLR]", &c.Native)
	if c.HasCompat {
		l.Infof("[PaX ASLR (compat)] status: %s", c.CompatStatus)
		logTable(l, "[PaX ASLR (compat)]", &c.Compat)
	}
	if c.HasMap32Bit {
		l.Infof("[PaX ASLR] map32bit: %d bit", c.Native.Regions[Map32Bit].Width)
		l.Infof("[PaX ASLR] disallow MAP_32BIT mode mmap: %s", c.DisallowMap32BitStatus)
	}
}

func logTable(l log.Logger, prefix string, t *Table) {
	l.Infof("%s mmap: %d bit", prefix, t.Regions[Mmap].Width)
	l.Infof("%s rtld: %d bit", prefix, t.Regions[DynamicLinker].Width)
	l.Infof("%s exec base: %d bit", prefix, t.Regions[ExecBase].Width)
	l.Infof("%s stack: %d bit", prefix, t.Regions[Stack].Width)
	if w := t.Regions[ThreadStack].Width; w != 0 {
		l.Infof("%s thread stack: %d bit", prefix, w)
	}
	l.Infof("%s vdso: %d bit", prefix, t.Regions[Vdso].Width)
}
