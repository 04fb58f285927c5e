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
	"strings"
	"testing"

	"gvisor.dev/pax/pkg/hostarch"
	"gvisor.dev/pax/pkg/log"
)

func TestExecScenario(t *testing.T) {
	cfg := DefaultConfig(LP64)
	cfg.Status = OptOut
	cfg.Native.Regions[Mmap] = RegionParams{Width: 30, Position: 12}

	rec := &log.Recorder{}
	e := NewEngine(cfg,
		WithRandom(words(0x12345, 1, 2, 0x600, 1, 0x40, 3)),
		WithLogger(rec),
		WithWarningLogger(rec))

	s, err := e.Exec(RootDomain, Image{})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !s.Active() {
		t.Fatalf("state %v is not active", s)
	}
	if !s.Flags().Has(NoteASLR) || s.Flags().Has(NoteShlibRandom) {
		t.Errorf("flags = %v, want ASLR without SHLIBRANDOM", s.Flags())
	}

	d := s.Delta(Mmap)
	if d&^0x3fffffff000 != 0 {
		t.Errorf("mmap delta %#x has bits outside [12, 42)", d)
	}
	if got, want := s.Apply(Mmap, 0x1000, CallContext{Anonymous: true}), hostarch.Addr(0x1000+d); got != want {
		t.Errorf("Apply(Mmap, 0x1000, anonymous) = %v, want %v", got, want)
	}
	hint := hostarch.Addr(0x7f0000000000)
	if got := s.Apply(Mmap, hint, CallContext{Hint: hint}); got != hint {
		t.Errorf("Apply(Mmap, %v, file with hint) = %v, want unchanged", hint, got)
	}
	if len(rec.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %q", rec.Warnings())
	}
}

func TestActivateOptOutImage(t *testing.T) {
	e := NewEngine(DefaultConfig(LP64), WithLogger(&log.Recorder{}))
	flags, err := e.Activate(RootDomain, Image{Mode: NoteNoASLR})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if Active(flags) {
		t.Errorf("Activate(NOASLR) = %v, want inactive", flags)
	}
	s, err := e.InitRegions(flags, Native)
	if err != nil {
		t.Fatalf("InitRegions failed: %v", err)
	}
	if got := s.Apply(Mmap, 0x1000, CallContext{Anonymous: true}); got != 0x1000 {
		t.Errorf("Apply on inactive state = %v, want 0x1000", got)
	}
}

func TestActivateCompat(t *testing.T) {
	cfg := DefaultConfig(LP64)
	cfg.CompatStatus = Disabled
	e := NewEngine(cfg, WithLogger(&log.Recorder{}))

	native, err := e.Activate(RootDomain, Image{Mode: NoteASLR})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !Active(native) {
		t.Errorf("native flags = %v, want active", native)
	}
	compat, err := e.Activate(RootDomain, Image{Mode: NoteASLR, Personality: Compat})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if Active(compat) {
		t.Errorf("compat flags = %v, want inactive", compat)
	}

	// Compat images draw from the narrow table.
	s, err := e.InitRegions(native, Compat)
	if err != nil {
		t.Fatalf("InitRegions failed: %v", err)
	}
	if d := s.Delta(Mmap); d&^0x3fff000 != 0 {
		t.Errorf("compat mmap delta %#x has bits outside [12, 26)", d)
	}
	if d := s.Delta(Map32Bit); d != 0 {
		t.Errorf("compat map32bit delta = %#x, want 0", d)
	}
}

func TestActivateMap32Bit(t *testing.T) {
	cfg := DefaultConfig(LP64)
	e := NewEngine(cfg, WithLogger(&log.Recorder{}))
	flags, err := e.Activate(RootDomain, Image{})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !flags.Has(NoteNoDisallowMap32Bit) {
		t.Errorf("opt-in default: flags = %v, want NODISALLOW_MAP32BIT", flags)
	}

	cfg.Harden()
	e = NewEngine(cfg, WithLogger(&log.Recorder{}))
	flags, err = e.Activate(RootDomain, Image{})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !DisallowMap32BitActive(flags, true) {
		t.Errorf("hardened: flags = %v, want low address class refused", flags)
	}

	e = NewEngine(DefaultConfig(ILP32), WithLogger(&log.Recorder{}))
	flags, err = e.Activate(RootDomain, Image{})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if flags.Has(NoteDisallowMap32Bit) || flags.Has(NoteNoDisallowMap32Bit) {
		t.Errorf("ilp32: flags = %v, want no map32bit bits", flags)
	}
	if !flags.Consistent() {
		t.Errorf("ilp32: flags %v not consistent", flags)
	}
}

func TestActivateInvalidStatus(t *testing.T) {
	rec := &log.Recorder{}
	e := NewEngine(DefaultConfig(LP64), WithLogger(rec), WithWarningLogger(rec))
	e.tree.domains[RootDomain].policy.ASLR = 6
	before := policyErrors.Value(FeatureASLR.String())

	flags, err := e.Activate(RootDomain, Image{Mode: NoteNoASLR})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if want := NoteASLR | NoteShlibRandom; flags&(NoteASLR|NoteNoASLR|NoteShlibRandom|NoteNoShlibRandom) != want {
		t.Errorf("flags = %v, want %v", flags, want)
	}
	if got := policyErrors.Value(FeatureASLR.String()) - before; got != 1 {
		t.Errorf("policy errors grew by %d, want 1", got)
	}
	w := rec.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], "hardening.pax.aslr.status = 6") {
		t.Errorf("warnings = %q, want one about hardening.pax.aslr.status", w)
	}
}

func TestActivateUnknownDomain(t *testing.T) {
	e := NewEngine(DefaultConfig(LP64), WithLogger(&log.Recorder{}))
	if _, err := e.Activate(99, Image{}); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Activate(99) = %v, want %v", err, ErrUnknownDomain)
	}
	if _, err := e.Exec(99, Image{}); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Exec(99) = %v, want %v", err, ErrUnknownDomain)
	}
}

func TestActivateDomainPolicy(t *testing.T) {
	e := NewEngine(DefaultConfig(LP64), WithLogger(&log.Recorder{}))
	id, err := e.Tree().Attach(RootDomain, "hardened", Overrides{"hardening.pax.aslr.status": "3"})
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	flags, err := e.Activate(id, Image{Mode: NoteNoASLR})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !Active(flags) {
		t.Errorf("force-enabled domain: flags = %v, want active", flags)
	}
	flags, err = e.Activate(RootDomain, Image{Mode: NoteNoASLR})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if Active(flags) {
		t.Errorf("opt-out root: flags = %v, want inactive", flags)
	}
}
