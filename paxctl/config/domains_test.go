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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/pkg/log"
)

const testDomains = `
domains:
- name: web
  overrides:
    hardening.pax.aslr.status: force-enabled
- name: web/legacy
  parent: web
  overrides:
    hardening.pax.aslr.compat.status: "0"
- name: batch
`

func TestDomainsAttach(t *testing.T) {
	f, err := DecodeDomains([]byte(testDomains))
	if err != nil {
		t.Fatalf("DecodeDomains failed: %v", err)
	}
	tree := aslr.NewTree(aslr.DefaultConfig(aslr.LP64), &log.Recorder{})
	if err := f.Attach(tree); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	legacy, ok := tree.Lookup("web/legacy")
	if !ok {
		t.Fatalf("web/legacy not attached")
	}
	got, err := tree.Policy(legacy)
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	want := aslr.Policy{ASLR: aslr.ForceEnabled, CompatASLR: aslr.Disabled, DisallowMap32Bit: aslr.OptIn}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("web/legacy policy mismatch (-want +got):\n%s", diff)
	}
	web, _ := tree.Lookup("web")
	if p, _ := tree.Parent(legacy); p != web {
		t.Errorf("Parent(web/legacy) = %d, want %d", p, web)
	}
}

func TestDomainsRoundTrip(t *testing.T) {
	f, err := DecodeDomains([]byte(testDomains))
	if err != nil {
		t.Fatalf("DecodeDomains failed: %v", err)
	}
	tree := aslr.NewTree(aslr.DefaultConfig(aslr.LP64), &log.Recorder{})
	if err := f.Attach(tree); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	out, err := Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	f2, err := DecodeDomains(out)
	if err != nil {
		t.Fatalf("DecodeDomains(%s) failed: %v", out, err)
	}
	tree2 := aslr.NewTree(aslr.DefaultConfig(aslr.LP64), &log.Recorder{})
	if err := f2.Attach(tree2); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if diff := cmp.Diff(tree.Domains(), tree2.Domains()); diff != "" {
		t.Errorf("domains differ after round trip (-want +got):\n%s", diff)
	}
}

func TestDomainsErrors(t *testing.T) {
	tree := aslr.NewTree(aslr.DefaultConfig(aslr.LP64), &log.Recorder{})
	f := &DomainFile{Domains: []DomainSpec{{Name: "orphan", Parent: "nobody"}}}
	if err := f.Attach(tree); !errors.Is(err, aslr.ErrUnknownDomain) {
		t.Errorf("Attach with unknown parent = %v, want %v", err, aslr.ErrUnknownDomain)
	}

	if _, err := DecodeDomains([]byte("domains:\n- name: x\n  policy: 3\n")); err == nil {
		t.Errorf("DecodeDomains with unknown field succeeded, want error")
	}
}
