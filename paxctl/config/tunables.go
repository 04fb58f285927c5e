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

package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"gvisor.dev/pax/pkg/aslr"
)

// Tunables is the contents of a tunables file. Every value is optional; an
// absent value keeps the default.
//
// Example:
//
//	[hardening.pax.aslr]
//	status = "force-enabled"
//	mmap_len = 33
//
//	[hardening.pax.aslr.compat]
//	status = 2
//
//	[hardening.pax.disallow_map32bit]
//	status = 3
type Tunables struct {
	Hardening struct {
		PaX struct {
			ASLR struct {
				regionTunables
				Compat regionTunables `toml:"compat"`
			} `toml:"aslr"`
			DisallowMap32Bit struct {
				Status *tunableStatus `toml:"status"`
			} `toml:"disallow_map32bit"`
		} `toml:"pax"`
	} `toml:"hardening"`
}

// regionTunables holds the tunables shared by the native and compat tables.
type regionTunables struct {
	Status      *tunableStatus `toml:"status"`
	MmapLen     *uint          `toml:"mmap_len"`
	RtldLen     *uint          `toml:"rtld_len"`
	StackLen    *uint          `toml:"stack_len"`
	ThrStackLen *uint          `toml:"thr_stack_len"`
	ExecLen     *uint          `toml:"exec_len"`
	VdsoLen     *uint          `toml:"vdso_len"`
	Map32BitLen *uint          `toml:"map32bit_len"`
}

// tunableStatus is a status as written in a tunables file. Integers are kept
// as is, even out of range: aslr.Config.Validate replaces them with the
// fail-safe status and warns.
type tunableStatus aslr.Status

// UnmarshalTOML implements toml.Unmarshaler.
func (s *tunableStatus) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("%w: %d", aslr.ErrInvalidStatus, v)
		}
		*s = tunableStatus(v)
		return nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32); err == nil {
			*s = tunableStatus(n)
			return nil
		}
		st, err := aslr.ParseStatus(v)
		if err != nil {
			return err
		}
		*s = tunableStatus(st)
		return nil
	default:
		return fmt.Errorf("%w: %v", aslr.ErrInvalidStatus, v)
	}
}

func (r *regionTunables) widths() map[aslr.RegionKind]*uint {
	return map[aslr.RegionKind]*uint{
		aslr.Mmap:          r.MmapLen,
		aslr.DynamicLinker: r.RtldLen,
		aslr.Stack:         r.StackLen,
		aslr.ThreadStack:   r.ThrStackLen,
		aslr.ExecBase:      r.ExecLen,
		aslr.Vdso:          r.VdsoLen,
		aslr.Map32Bit:      r.Map32BitLen,
	}
}

// LoadTunables reads a tunables file. Keys that are not known tunables are
// an error.
func LoadTunables(path string) (*Tunables, error) {
	var t Tunables
	md, err := toml.DecodeFile(path, &t)
	if err != nil {
		return nil, fmt.Errorf("reading tunables %q: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, fmt.Errorf("reading tunables %q: %w", path, err)
	}
	return &t, nil
}

// DecodeTunables is LoadTunables for a TOML document held in memory.
func DecodeTunables(data string) (*Tunables, error) {
	var t Tunables
	md, err := toml.Decode(data, &t)
	if err != nil {
		return nil, err
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	return &t, nil
}

func checkUndecoded(md toml.MetaData) error {
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.String())
		}
		return fmt.Errorf("%w: %s", aslr.ErrInvalidParam, strings.Join(names, ", "))
	}
	return nil
}

// Apply writes the tunables that are set into c. Compat tunables are an
// error on a platform without a compat personality, as is a map32bit width
// without the low address class. Out of range statuses and widths are
// written as is and left to c.Validate.
func (t *Tunables) Apply(c *aslr.Config) error {
	pax := &t.Hardening.PaX
	if pax.ASLR.Status != nil {
		c.Status = aslr.Status(*pax.ASLR.Status)
	}
	if err := applyWidths(&c.Native, &pax.ASLR.regionTunables, "hardening.pax.aslr.", c.HasMap32Bit); err != nil {
		return err
	}

	compat := &pax.ASLR.Compat
	if !c.HasCompat {
		if compat.Status != nil || anySet(compat.widths()) {
			return fmt.Errorf("%w: hardening.pax.aslr.compat.* without a compat personality", aslr.ErrInvalidParam)
		}
	} else {
		if compat.Status != nil {
			c.CompatStatus = aslr.Status(*compat.Status)
		}
		if err := applyWidths(&c.Compat, compat, "hardening.pax.aslr.compat.", false); err != nil {
			return err
		}
	}

	if s := pax.DisallowMap32Bit.Status; s != nil {
		if !c.HasMap32Bit {
			return fmt.Errorf("%w: %s without MAP_32BIT support", aslr.ErrInvalidParam, aslr.FeatureDisallowMap32Bit.Param())
		}
		c.DisallowMap32BitStatus = aslr.Status(*s)
	}
	return nil
}

func applyWidths(table *aslr.Table, r *regionTunables, prefix string, hasMap32Bit bool) error {
	for k, w := range r.widths() {
		if w == nil {
			continue
		}
		if k == aslr.Map32Bit && !hasMap32Bit && *w != 0 {
			return fmt.Errorf("%w: %smap32bit_len without MAP_32BIT support", aslr.ErrInvalidParam, prefix)
		}
		table.Regions[k].Width = *w
	}
	return nil
}

func anySet(m map[aslr.RegionKind]*uint) bool {
	for _, w := range m {
		if w != nil {
			return true
		}
	}
	return false
}
