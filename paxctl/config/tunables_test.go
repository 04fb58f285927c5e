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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/pax/pkg/aslr"
	"gvisor.dev/pax/pkg/log"
)

func TestTunablesApply(t *testing.T) {
	tun, err := DecodeTunables(`
[hardening.pax.aslr]
status = 1
mmap_len = 20
stack_len = 36
vdso_len = 24

[hardening.pax.aslr.compat]
status = "disabled"
exec_len = 10

[hardening.pax.disallow_map32bit]
status = 3
`)
	if err != nil {
		t.Fatalf("DecodeTunables failed: %v", err)
	}
	c := aslr.DefaultConfig(aslr.LP64)
	if err := tun.Apply(c); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := aslr.DefaultConfig(aslr.LP64)
	want.Status = aslr.OptIn
	want.CompatStatus = aslr.Disabled
	want.DisallowMap32BitStatus = aslr.ForceEnabled
	want.Native.Regions[aslr.Mmap].Width = 20
	want.Native.Regions[aslr.Stack].Width = 36
	want.Native.Regions[aslr.Vdso].Width = 24
	want.Compat.Regions[aslr.ExecBase].Width = 10
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestTunablesInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		arch aslr.Arch
		doc  string
	}{
		{"unknown key", aslr.LP64, "[hardening.pax.aslr]\nheap_len = 3\n"},
		{"unknown table", aslr.LP64, "[hardening.pax.segvguard]\nstatus = 1\n"},
		{"compat on ilp32", aslr.ILP32, "[hardening.pax.aslr.compat]\nstatus = 1\n"},
		{"map32bit on ilp32", aslr.ILP32, "[hardening.pax.disallow_map32bit]\nstatus = 1\n"},
		{"map32bit width on ilp32", aslr.ILP32, "[hardening.pax.aslr]\nmap32bit_len = 4\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tun, err := DecodeTunables(tc.doc)
			if err == nil {
				err = tun.Apply(aslr.DefaultConfig(tc.arch))
			}
			if !errors.Is(err, aslr.ErrInvalidParam) {
				t.Errorf("got %v, want %v", err, aslr.ErrInvalidParam)
			}
		})
	}
}

func TestTunablesOutOfRange(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		want func(c *aslr.Config)
	}{
		{
			name: "aslr status",
			doc:  "[hardening.pax.aslr]\nstatus = 7\n",
			want: func(c *aslr.Config) { c.Status = aslr.ForceEnabled },
		},
		{
			name: "compat status as string",
			doc:  "[hardening.pax.aslr.compat]\nstatus = \"-1\"\n",
			want: func(c *aslr.Config) { c.CompatStatus = aslr.ForceEnabled },
		},
		{
			name: "compat width beyond word",
			doc:  "[hardening.pax.aslr.compat]\nmmap_len = 40\n",
			want: func(c *aslr.Config) { c.Compat.Regions[aslr.Mmap].Width = 40 },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tun, err := DecodeTunables(tc.doc)
			if err != nil {
				t.Fatalf("DecodeTunables failed: %v", err)
			}
			c := aslr.DefaultConfig(aslr.LP64)
			if err := tun.Apply(c); err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			rec := &log.Recorder{}
			c.Validate(rec)

			want := aslr.DefaultConfig(aslr.LP64)
			tc.want(want)
			if diff := cmp.Diff(want, c); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
			if got := rec.Warnings(); len(got) != 1 {
				t.Errorf("got warnings %q, want exactly one", got)
			}
		})
	}
}

func TestTunablesBadStatus(t *testing.T) {
	for _, doc := range []string{
		"[hardening.pax.aslr]\nstatus = \"sometimes\"\n",
		"[hardening.pax.aslr]\nstatus = 1.5\n",
		"[hardening.pax.aslr]\nstatus = 4294967296\n",
	} {
		_, err := DecodeTunables(doc)
		if err == nil || !strings.Contains(err.Error(), aslr.ErrInvalidStatus.Error()) {
			t.Errorf("DecodeTunables(%q) = %v, want %v", doc, err, aslr.ErrInvalidStatus)
		}
	}
}
